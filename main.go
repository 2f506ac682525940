// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/confaudit/confaudit/cmd/confaudit"

func main() {
	cmd.Execute()
}
