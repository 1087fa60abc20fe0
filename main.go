// ./main.go
package main

import (
	"github.com/xkilldash9x/webactions/cmd"
)

// main hands control to the cobra command tree.
func main() {
	cmd.Execute()
}
