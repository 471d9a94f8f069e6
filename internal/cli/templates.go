// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyset.
//
// go-keyset is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-keyset/pkg/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List available key templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range template.Names() {
			fmt.Println(name)
		}
		return nil
	},
}
