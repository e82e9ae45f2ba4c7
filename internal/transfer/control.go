package transfer

import (
	"bufio"
	"bytes"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ControlFile is the header of a zsync control file.
type ControlFile struct {
	Version   string
	Filename  string
	MTime     time.Time
	Blocksize int
	Length    int64
	URL       string
	SHA1      string
}

// ParseControlFile parses the header block of a zsync control file, which
// ends at the first empty line. The block checksums that follow are ignored.
func ParseControlFile(data []byte) (*ControlFile, error) {
	cf := &ControlFile{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line: %q", line)
		}
		value = strings.TrimSpace(value)

		switch key {
		case "zsync":
			cf.Version = value
		case "Filename":
			cf.Filename = value
		case "MTime":
			mtime, err := time.Parse(time.RFC1123Z, value)
			if err != nil {
				return nil, fmt.Errorf("invalid MTime %q: %w", value, err)
			}
			cf.MTime = mtime
		case "Blocksize":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid Blocksize %q: %w", value, err)
			}
			cf.Blocksize = n
		case "Length":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("invalid Length %q", value)
			}
			cf.Length = n
		case "URL":
			cf.URL = value
		case "SHA-1":
			cf.SHA1 = strings.ToLower(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read control file: %w", err)
	}

	if cf.Version == "" {
		return nil, fmt.Errorf("not a zsync control file")
	}
	if cf.URL == "" {
		return nil, fmt.Errorf("control file has no URL")
	}
	if cf.SHA1 == "" {
		return nil, fmt.Errorf("control file has no SHA-1")
	}

	return cf, nil
}

// FileURL resolves the control file's URL field against the control file location.
func (cf *ControlFile) FileURL(controlURL string) (string, error) {
	base, err := url.Parse(controlURL)
	if err != nil {
		return "", fmt.Errorf("invalid control file URL: %w", err)
	}
	ref, err := url.Parse(cf.URL)
	if err != nil {
		return "", fmt.Errorf("invalid file URL %q: %w", cf.URL, err)
	}
	return base.ResolveReference(ref).String(), nil
}
