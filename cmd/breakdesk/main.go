// Command breakdesk runs the break session tracking service.
package main

import "github.com/mark-ai1/Break-Management/cmd/breakdesk/cmd"

func main() {
	cmd.Execute()
}
