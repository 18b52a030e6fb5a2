package app

// Key binding constants used in handleKey.
const (
	KeyQuit        = "q"
	KeyQuitUpper   = "Q"
	KeyCtrlC       = "ctrl+c"
	KeySpace       = " "
	KeyTab         = "tab"
	KeyUp          = "up"
	KeyDown        = "down"
	KeyJ           = "j"
	KeyK           = "k"
	KeyEnter       = "enter"
	KeyEsc         = "esc"
	KeyBackspace   = "backspace"
	KeySearch      = "/"
	KeySave        = "s"
	KeyDelete      = "d"
	KeyAttach      = "a"
	KeyUnstage     = "x"
	KeyRefresh     = "r"
	KeyCycleDevice = "i"
	KeyNextDraft   = "n"
)
