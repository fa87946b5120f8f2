package keymap

type entry struct {
	name string
	code uint32
}

// The first entry for a name is the one used for reverse lookups, so left-hand
// modifiers come before right-hand ones.

var windowsTable = []entry{
	{"backspace", 0x08}, {"tab", 0x09}, {"enter", 0x0D}, {"pause", 0x13},
	{"caps_lock", 0x14}, {"esc", 0x1B}, {"space", 0x20},
	{"page_up", 0x21}, {"page_down", 0x22}, {"end", 0x23}, {"home", 0x24},
	{"left", 0x25}, {"up", 0x26}, {"right", 0x27}, {"down", 0x28},
	{"print_screen", 0x2C}, {"insert", 0x2D}, {"delete", 0x2E},
	{"super", 0x5B}, {"super", 0x5C}, {"menu", 0x5D},
	{"num_lock", 0x90}, {"scroll_lock", 0x91},
	{"shift", 0xA0}, {"shift", 0xA1}, {"shift", 0x10},
	{"ctrl", 0xA2}, {"ctrl", 0xA3}, {"ctrl", 0x11},
	{"alt", 0xA4}, {"alt", 0xA5}, {"alt", 0x12},
}

var evdevTable = []entry{
	{"esc", 1}, {"backspace", 14}, {"tab", 15}, {"enter", 28},
	{"ctrl", 29}, {"ctrl", 97}, {"shift", 42}, {"shift", 54},
	{"alt", 56}, {"alt", 100}, {"space", 57}, {"caps_lock", 58},
	{"num_lock", 69}, {"scroll_lock", 70},
	{"f11", 87}, {"f12", 88}, {"print_screen", 99},
	{"home", 102}, {"up", 103}, {"page_up", 104}, {"left", 105},
	{"right", 106}, {"end", 107}, {"down", 108}, {"page_down", 109},
	{"insert", 110}, {"delete", 111}, {"pause", 119},
	{"super", 125}, {"super", 126}, {"menu", 127},
	{"q", 16}, {"w", 17}, {"e", 18}, {"r", 19}, {"t", 20}, {"y", 21},
	{"u", 22}, {"i", 23}, {"o", 24}, {"p", 25},
	{"a", 30}, {"s", 31}, {"d", 32}, {"f", 33}, {"g", 34}, {"h", 35},
	{"j", 36}, {"k", 37}, {"l", 38},
	{"z", 44}, {"x", 45}, {"c", 46}, {"v", 47}, {"b", 48}, {"n", 49}, {"m", 50},
	{"1", 2}, {"2", 3}, {"3", 4}, {"4", 5}, {"5", 6}, {"6", 7}, {"7", 8},
	{"8", 9}, {"9", 10}, {"0", 11},
	{"f1", 59}, {"f2", 60}, {"f3", 61}, {"f4", 62}, {"f5", 63},
	{"f6", 64}, {"f7", 65}, {"f8", 66}, {"f9", 67}, {"f10", 68},
	{"f13", 183}, {"f14", 184}, {"f15", 185}, {"f16", 186},
	{"f17", 187}, {"f18", 188}, {"f19", 189}, {"f20", 190},
	{"f21", 191}, {"f22", 192}, {"f23", 193}, {"f24", 194},
}

var darwinTable = []entry{
	{"a", 0}, {"s", 1}, {"d", 2}, {"f", 3}, {"h", 4}, {"g", 5}, {"z", 6},
	{"x", 7}, {"c", 8}, {"v", 9}, {"b", 11}, {"q", 12}, {"w", 13}, {"e", 14},
	{"r", 15}, {"y", 16}, {"t", 17}, {"1", 18}, {"2", 19}, {"3", 20},
	{"4", 21}, {"6", 22}, {"5", 23}, {"9", 25}, {"7", 26}, {"8", 28},
	{"0", 29}, {"o", 31}, {"u", 32}, {"i", 34}, {"p", 35}, {"l", 37},
	{"j", 38}, {"k", 40}, {"n", 45}, {"m", 46},
	{"enter", 36}, {"tab", 48}, {"space", 49}, {"backspace", 51}, {"esc", 53},
	{"super", 55}, {"super", 54}, {"shift", 56}, {"shift", 60},
	{"caps_lock", 57}, {"alt", 58}, {"alt", 61}, {"ctrl", 59}, {"ctrl", 62},
	{"f1", 122}, {"f2", 120}, {"f3", 99}, {"f4", 118}, {"f5", 96}, {"f6", 97},
	{"f7", 98}, {"f8", 100}, {"f9", 101}, {"f10", 109}, {"f11", 103},
	{"f12", 111}, {"f13", 105}, {"f14", 107}, {"f15", 113}, {"f16", 106},
	{"f17", 64}, {"f18", 79}, {"f19", 80}, {"f20", 90},
	{"num_lock", 71}, {"home", 115}, {"page_up", 116}, {"delete", 117},
	{"end", 119}, {"page_down", 121}, {"left", 123}, {"right", 124},
	{"down", 125}, {"up", 126},
}

var (
	windowsByCode, evdevByCode, darwinByCode = map[uint32]string{}, map[uint32]string{}, map[uint32]string{}
	windowsByName, evdevByName, darwinByName = map[string]uint32{}, map[string]uint32{}, map[string]uint32{}
)

func index(table []entry, byCode map[uint32]string, byName map[string]uint32) {
	for _, e := range table {
		byCode[e.code] = e.name
		if _, ok := byName[e.name]; !ok {
			byName[e.name] = e.code
		}
	}
}

func init() {
	// Letters, digits and function keys follow contiguous VK ranges.
	for c := 'a'; c <= 'z'; c++ {
		windowsTable = append(windowsTable, entry{string(c), uint32('A' + (c - 'a'))})
	}
	for c := '0'; c <= '9'; c++ {
		windowsTable = append(windowsTable, entry{string(c), uint32(c)})
	}
	for i := 1; i <= 24; i++ {
		windowsTable = append(windowsTable, entry{fkey(i), uint32(0x70 + i - 1)})
	}

	index(windowsTable, windowsByCode, windowsByName)
	index(evdevTable, evdevByCode, evdevByName)
	index(darwinTable, darwinByCode, darwinByName)
}

func fkey(i int) string {
	if i < 10 {
		return "f" + string(rune('0'+i))
	}
	return "f" + string(rune('0'+i/10)) + string(rune('0'+i%10))
}
