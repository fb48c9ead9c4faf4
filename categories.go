package maskrle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrUnknownCategory is returned when a category id or class id is not
// present in the loaded category file
var ErrUnknownCategory = errors.New("unknown category")

// Category is a single entry of the category file.  ID is the 1-indexed line
// number in the file and OriginalID the external class id (eg: "/m/0jy4k")
type Category struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	OriginalID    string `json:"original_id"`
	SuperCategory string `json:"supercategory,omitempty"`
}

// Categories is the immutable ordered category mapping for a run
type Categories struct {
	list       []Category
	byOriginal map[string]int
}

// LoadCategories reads the category file.  It should contain one
// "class_id,class_name" pair per line with no header, the line order defines
// the internal category id starting at 1.
func LoadCategories(file string) (*Categories, error) {

	// open the file
	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening category file: %w", err)
	}

	defer f.Close()

	cats, err := ReadCategories(f)

	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	return cats, nil
}

// ReadCategories parses category lines from r
func ReadCategories(r io.Reader) (*Categories, error) {

	scanner := bufio.NewScanner(r)

	c := &Categories{
		byOriginal: make(map[string]int),
	}

	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		fields := strings.Split(line, ",")

		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected 2 fields, got %d", lineNo, len(fields))
		}

		if _, exists := c.byOriginal[fields[0]]; exists {
			return nil, fmt.Errorf("line %d: duplicate class id %q", lineNo, fields[0])
		}

		id := len(c.list) + 1

		c.list = append(c.list, Category{
			ID:         id,
			Name:       fields[1],
			OriginalID: fields[0],
		})
		c.byOriginal[fields[0]] = id
	}

	// check for errors during scanning
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading categories: %w", err)
	}

	return c, nil
}

// Len returns the number of categories
func (c *Categories) Len() int {
	return len(c.list)
}

// List returns a copy of the categories in file order
func (c *Categories) List() []Category {
	out := make([]Category, len(c.list))
	copy(out, c.list)
	return out
}

// ByID returns the category with the given 1-indexed id
func (c *Categories) ByID(id int) (Category, error) {

	if id < 1 || id > len(c.list) {
		return Category{}, fmt.Errorf("%w: id %d", ErrUnknownCategory, id)
	}

	return c.list[id-1], nil
}

// IDOf returns the internal id for the external class id
func (c *Categories) IDOf(originalID string) (int, error) {

	id, ok := c.byOriginal[originalID]

	if !ok {
		return 0, fmt.Errorf("%w: class %q", ErrUnknownCategory, originalID)
	}

	return id, nil
}
