package pathcopy

// Task is one manifest entry: a source path copied to a destination path.
// Both paths are absolute and cleaned by the planner.
type Task struct {
	Source      string
	Destination string
}
