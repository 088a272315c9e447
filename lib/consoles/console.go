package consoles

// Console prints progress messages. Prefixes stack, and each line gets all of them.
type Console interface {
	Printf(format string, a ...any)

	PushPrefix(format string, a ...any)
	PopPrefix()
}
