package feature

import (
	"bufio"
	"fmt"
	"os"
	"strconv"

	pkgerrors "imgsearch/pkg/errors"
)

// ParseListFile reads an image list: a count N followed by N file names,
// separated by any whitespace.
func ParseListFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open list file %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Split(bufio.ScanWords)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s is empty", pkgerrors.ErrInvalidListFile, path)
	}
	n, err := strconv.Atoi(scanner.Text())
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad image count %q", pkgerrors.ErrInvalidListFile, scanner.Text())
	}

	names := make([]string, 0, n)
	for len(names) < n && scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(names) != n {
		return nil, fmt.Errorf("%w: expected %d names, found %d", pkgerrors.ErrInvalidListFile, n, len(names))
	}
	return names, nil
}

// RecordName is the catalog name given to the i-th training image.
func RecordName(i int) string {
	return fmt.Sprintf("i%07d", i)
}
