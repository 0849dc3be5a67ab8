package pipeline

import (
	"github.com/runixer/grabber/internal/extractor"
	"github.com/runixer/grabber/internal/telegram"
	"github.com/runixer/grabber/internal/token"
)

// Menu is the quality keyboard built for one link.
type Menu struct {
	Keyboard *telegram.InlineKeyboardMarkup
	Offered  int
	// Hidden counts eligible formats left out because their token did not
	// fit the callback data limit.
	Hidden int
	// Duplicates counts eligible formats whose label was already offered.
	Duplicates int
}

// BuildMenu turns the formats into one button per row. Ineligible formats
// are skipped, and of several formats with the same label the first wins.
func BuildMenu(formats []extractor.Format, key, unknownSize string) (Menu, error) {
	var (
		menu Menu
		rows [][]telegram.InlineKeyboardButton
		seen = make(map[string]bool)
	)

	for _, f := range formats {
		if !extractor.Eligible(f) {
			continue
		}

		label := extractor.Label(f, unknownSize)
		if seen[label] {
			menu.Duplicates++
			continue
		}

		// Too long, or a format id the token cannot carry.
		data, err := token.Encode(f.ID, f.Ext, key)
		if err != nil {
			menu.Hidden++
			continue
		}

		seen[label] = true
		rows = append(rows, []telegram.InlineKeyboardButton{{Text: label, CallbackData: data}})
	}

	menu.Offered = len(rows)
	if menu.Offered == 0 {
		return menu, ErrNoEligibleFormats
	}
	menu.Keyboard = &telegram.InlineKeyboardMarkup{InlineKeyboard: rows}
	return menu, nil
}
