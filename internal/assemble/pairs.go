package assemble

// Pair is one print sheet worth of rendered faces: two magnets per
// sheet, top slot and bottom slot.
type Pair struct {
	Top    string
	Bottom string
}

// Pairing is the result of grouping rendered faces into sheets, in
// batch order. Leftover is the unpaired trailing face when the batch
// is odd; it is reported, never silently dropped and never printed on
// a half-empty sheet.
type Pairing struct {
	Pairs    []Pair
	Leftover string
}

// PairFaces groups faces two per sheet in order.
func PairFaces(faces []string) Pairing {
	var p Pairing
	for i := 0; i+1 < len(faces); i += 2 {
		p.Pairs = append(p.Pairs, Pair{Top: faces[i], Bottom: faces[i+1]})
	}
	if len(faces)%2 == 1 {
		p.Leftover = faces[len(faces)-1]
	}
	return p
}
