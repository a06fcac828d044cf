// Command wo coordinates coding agents working on tasks in isolated git
// worktrees.
package main

func main() {
	Execute()
}
