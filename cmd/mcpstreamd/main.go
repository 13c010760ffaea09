// Command mcpstreamd runs the mcpstream streamable HTTP transport as a
// standalone reference server.
package main

import "github.com/streamrelay/mcpstream/cmd/mcpstreamd/cmd"

func main() {
	cmd.Execute()
}
