package tui

// layout 根据终端尺寸计算各面板的大小
type layout struct {
	width  int
	height int

	sidebarWidth int
	formWidth    int
	queryWidth   int
	bodyHeight   int

	// 响应区域（viewport）的尺寸
	responseWidth  int
	responseHeight int
}

const (
	minSidebarWidth = 24
	// 底部状态栏和帮助栏
	footerHeight = 2
	// 查询面板中标题、输入框、按钮等占用的行数
	queryChromeHeight = 12
)

func computeLayout(width, height int) layout {
	l := layout{width: width, height: height}

	l.sidebarWidth = width / 5
	if l.sidebarWidth < minSidebarWidth {
		l.sidebarWidth = minSidebarWidth
	}
	rest := width - l.sidebarWidth
	if rest < 0 {
		rest = 0
	}
	l.formWidth = rest / 3
	l.queryWidth = rest - l.formWidth

	l.bodyHeight = height - footerHeight
	if l.bodyHeight < 1 {
		l.bodyHeight = 1
	}

	// 内边距 2*2，边框 2
	l.responseWidth = l.queryWidth - 6
	if l.responseWidth < 10 {
		l.responseWidth = 10
	}
	l.responseHeight = l.bodyHeight - queryChromeHeight
	if l.responseHeight < 3 {
		l.responseHeight = 3
	}
	return l
}
