package braille

// Command is the value ReadCommand returns to the host. Positive
// values (and zero) are opaque host command codes the driver
// constructs by concatenating a block code with an offset or flag
// mask (spec.md §4.5): the core never interprets them beyond that
// concatenation.
type Command int32

const (
	// None indicates no key is pending; ReadCommand returns this on
	// every non-blocking poll that finds nothing to report.
	None Command = -1
	// Restart indicates the driver detected a fatal transport state
	// (missing ACKs past the bound, a power-off signal) and the host
	// must close and re-open the handle.
	Restart Command = -2
)

// Context is the screen-reader mode passed to ReadCommand, letting a
// driver's key bindings vary with it (spec.md §6).
type Context int

const (
	ContextScreen Context = iota
	ContextMenu
	ContextMessage
)

// Block codes a driver combines with an offset to build compound
// commands (spec.md §4.5 point 4). The host namespace itself is
// opaque to the core; these constants exist only so every driver
// builds compound commands the same way instead of inventing its own
// arithmetic.
const (
	BlockRoute Command = 0x1000 * (iota + 1)
	BlockCutBegin
	BlockCutAppend
	BlockCutLine
	BlockCutRect
	BlockGotoMark
	BlockSetMark
	BlockSetLeft
	BlockDescribeChar
	BlockIndentJump
	BlockGotoLine
)

// CmdRoute builds the ROUTE+index command for routing key index.
func CmdRoute(index int) Command { return BlockRoute + Command(index) }

// FlagRepeat is OR'd into a movement command emitted on the press
// transition rather than on release (spec.md §4.5 step 3: "repeating
// movement commands emit on the press transition with a repeat-delay
// flag so the host may autorepeat"). It occupies a high bit well
// outside the block-code range so it never collides with a
// BlockXxx+offset value.
const FlagRepeat Command = 1 << 30
