package layout

// Panes holds calculated list and detail pane dimensions.
type Panes struct {
	ListWidth   int
	DetailWidth int
	Height      int
}

// CalculatePanes splits the terminal between the list and detail panes.
func CalculatePanes(terminalWidth, terminalHeight int, cfg PaneConfig) Panes {
	height := terminalHeight - cfg.HeightReduction
	if height < cfg.MinHeight {
		height = cfg.MinHeight
	}

	usable := terminalWidth - cfg.WidthOffset
	list := usable * cfg.ListWidthPercent / 100
	if list < cfg.MinListWidth {
		list = cfg.MinListWidth
	}
	detail := usable - list
	if detail < 0 {
		detail = 0
	}

	return Panes{ListWidth: list, DetailWidth: detail, Height: height}
}

// ItemWidth computes the width available for item content in a pane.
func ItemWidth(paneWidth int, cfg PaneConfig) int {
	if w := paneWidth - cfg.ContentPadding; w > 0 {
		return w
	}
	return 1
}

// ModalWidth computes a modal width as a share of the terminal width,
// clamped to the configured bounds and the terminal itself.
func ModalWidth(terminalWidth int, cfg ModalConfig) int {
	width := terminalWidth * cfg.WidthPercent / 100
	width = max(width, cfg.MinWidth)
	width = min(width, cfg.MaxWidth, terminalWidth-4)
	if width < 1 {
		return 1
	}
	return width
}

// ViewportOffset calculates the scroll offset needed to keep the selected
// row visible, keeping it roughly centered.
func ViewportOffset(selected, total, viewportHeight int) int {
	if total <= viewportHeight {
		return 0
	}

	offset := selected - viewportHeight/2
	if offset < 0 {
		offset = 0
	}
	if maxOffset := total - viewportHeight; offset > maxOffset {
		offset = maxOffset
	}
	return offset
}
