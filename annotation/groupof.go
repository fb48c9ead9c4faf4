package annotation

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrGroupOfMiss is returned when a mask has no matching box to take its
	// IsGroupOf flag from
	ErrGroupOfMiss = errors.New("no IsGroupOf entry for mask")
	// ErrGroupOfConflict is returned when boxes matching a mask disagree on
	// their IsGroupOf flag and cannot be told apart
	ErrGroupOfConflict = errors.New("conflicting IsGroupOf entries for mask")
)

// roundCoord rounds a box coordinate to 2 decimal places.  The box and mask
// files carry the same coordinates at different precision
func roundCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// JoinKey returns the key joining a mask to its box
func JoinKey(imageID, labelName string, xMin float64) string {
	return imageID + "_" + labelName + "_" + roundCoord(xMin)
}

// groupOfEntry is a box sharing a join key
type groupOfEntry struct {
	// rest is the remainder of the rounded box, XMax, YMin, YMax
	rest      [3]string
	isGroupOf bool
}

// GroupOfIndex resolves the IsGroupOf flag of a mask from the box file
type GroupOfIndex struct {
	entries map[string][]groupOfEntry
}

// NewGroupOfIndex indexes the box rows by join key
func NewGroupOfIndex(rows []BoxRow) *GroupOfIndex {

	g := &GroupOfIndex{
		entries: make(map[string][]groupOfEntry, len(rows)),
	}

	for _, r := range rows {
		key := JoinKey(r.ImageID, r.LabelName, r.Box.XMin)
		g.entries[key] = append(g.entries[key], groupOfEntry{
			rest:      restKey(r.Box),
			isGroupOf: r.IsGroupOf,
		})
	}

	return g
}

func restKey(b Box) [3]string {
	return [3]string{roundCoord(b.XMax), roundCoord(b.YMin), roundCoord(b.YMax)}
}

// Len returns the number of distinct join keys
func (g *GroupOfIndex) Len() int {
	return len(g.entries)
}

// Lookup returns the IsGroupOf flag for a mask box.  When several boxes share
// the join key they are narrowed down by the rest of the rounded box
func (g *GroupOfIndex) Lookup(imageID, labelName string, box Box) (bool, error) {

	key := JoinKey(imageID, labelName, box.XMin)
	entries, ok := g.entries[key]

	if !ok {
		return false, fmt.Errorf("%w: key %s", ErrGroupOfMiss, key)
	}

	if v, ok := agree(entries); ok {
		return v, nil
	}

	rest := restKey(box)
	var matched []groupOfEntry

	for _, e := range entries {
		if e.rest == rest {
			matched = append(matched, e)
		}
	}

	if len(matched) == 0 {
		return false, fmt.Errorf("%w: key %s box %v", ErrGroupOfMiss, key, rest)
	}

	v, ok := agree(matched)

	if !ok {
		return false, fmt.Errorf("%w: key %s box %v", ErrGroupOfConflict, key, rest)
	}

	return v, nil
}

// agree reports the shared flag of the entries, if they all have the same one
func agree(entries []groupOfEntry) (bool, bool) {

	for _, e := range entries[1:] {
		if e.isGroupOf != entries[0].isGroupOf {
			return false, false
		}
	}

	return entries[0].isGroupOf, true
}
