package orders

import (
	"encoding/csv"
	"io"
	"strings"
)

// blockSeparator divides order blocks in the raw sale-notification
// text. The upstream mailbox puller emits exactly 60 dashes.
const blockSeparator = "------------------------------------------------------------"

// notFoundPlaceholder marks fields the puller could not extract.
const notFoundPlaceholder = "[Not found]"

// ParseResult carries the orders that parsed cleanly plus one error
// per block that did not. A bad block never aborts the batch.
type ParseResult struct {
	Orders    []*Order
	Malformed []*MalformedOrderError
}

// Parse reads raw order text and returns the structured orders in
// input order. Blocks missing an order number or containing no items
// are reported in Malformed and skipped.
func Parse(raw string) ParseResult {
	var res ParseResult

	for i, section := range strings.Split(raw, blockSeparator) {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}

		order, merr := parseBlock(i, section)
		if merr != nil {
			res.Malformed = append(res.Malformed, merr)
			continue
		}
		res.Orders = append(res.Orders, order)
	}
	return res
}

func parseBlock(index int, section string) (*Order, *MalformedOrderError) {
	order := &Order{}

	var (
		itemText    string
		pendingPers string
		havePers    bool
	)

	flush := func() {
		if itemText == "" {
			return
		}
		order.Items = append(order.Items, expandItem(itemText, pendingPers)...)
		itemText = ""
		pendingPers = ""
		havePers = false
	}

	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			flush()
			continue
		}

		switch {
		case strings.HasPrefix(line, "Order:"):
			order.ID = strings.TrimSpace(strings.TrimPrefix(line, "Order:"))
		case strings.HasPrefix(line, "Name:"):
			order.CustomerName = cleanField(strings.TrimPrefix(line, "Name:"))
		case strings.HasPrefix(line, "City:"):
			order.City = cleanField(strings.TrimPrefix(line, "City:"))
		case strings.HasPrefix(line, "State:"):
			order.State = cleanField(strings.TrimPrefix(line, "State:"))
		case strings.HasPrefix(line, "Transaction ID:"):
			// Not used downstream.
		case strings.HasPrefix(line, "Item:"):
			flush()
			itemText = strings.TrimSpace(strings.TrimPrefix(line, "Item:"))
		case strings.HasPrefix(line, "Personalization:"):
			pers := strings.TrimSpace(strings.TrimPrefix(line, "Personalization:"))
			if havePers && itemText != "" {
				// A second personalization under the same listing is a
				// separate physical item with the same item text.
				prev := pendingPers
				order.Items = append(order.Items, expandItem(itemText, prev)...)
			}
			pendingPers = pers
			havePers = true
		}
	}
	flush()

	if order.ID == "" {
		return nil, &MalformedOrderError{Block: index, Reason: "missing order number"}
	}
	if len(order.Items) == 0 {
		return nil, &MalformedOrderError{Block: index, Reason: "no items"}
	}
	return order, nil
}

func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == notFoundPlaceholder {
		return ""
	}
	return s
}

// expandItem splits a personalization that packs several
// "Character X ... Name Y" segments into one line item per segment.
// Buyers write these as comma-separated runs in a single field.
func expandItem(itemText, pers string) []*LineItem {
	if !strings.Contains(pers, ", Character") || !strings.Contains(pers, "Name") {
		return []*LineItem{{CharacterKey: itemText, Personalization: pers}}
	}

	parts := strings.Split(pers, ", Character")
	items := make([]*LineItem, 0, len(parts))
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if i > 0 {
			part = "Character " + part
		}
		items = append(items, &LineItem{CharacterKey: itemText, Personalization: part})
	}
	return items
}

// ParseCSV reads character,name rows — the automation front door. An
// optional header row is detected by its first cell. Rows with an
// empty first cell are skipped. The second column may be absent; an
// empty personalization means no text overlay.
func ParseCSV(r io.Reader) ([]*LineItem, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var items []*LineItem
	first := true
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			first = false
			if isHeaderRow(row) {
				continue
			}
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}

		li := &LineItem{CharacterKey: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			li.Personalization = strings.TrimSpace(row[1])
		}
		items = append(items, li)
	}
	return items, nil
}

func isHeaderRow(row []string) bool {
	if len(row) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(row[0])) {
	case "character", "characters", "image", "file", "name":
		return true
	}
	return false
}
