package ocr

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/maroofsyyed/Duesense1/internal/model"
)

var slidePartRe = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

type slidePart struct {
	num  int
	file *zip.File
}

// openSlides returns the slide parts of a .pptx in presentation order.
func openSlides(data []byte) ([]slidePart, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: open slide deck")
	}

	var parts []slidePart
	for _, f := range zr.File {
		m := slidePartRe.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		parts = append(parts, slidePart{num: n, file: f})
	}
	if len(parts) == 0 {
		return nil, eris.New("ocr: slide deck has no slides")
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].num < parts[j].num })
	return parts, nil
}

// slidePages pairs each slide's text with the number in its part name, so
// a deck without slide2.xml yields pages 1 and 3.
func slidePages(parts []slidePart, texts []string) []model.Page {
	pages := make([]model.Page, len(parts))
	for i, p := range parts {
		pages[i] = model.Page{Number: p.num, Text: strings.TrimRight(texts[i], " \n\t\r")}
	}
	return pages
}

// slideText walks one slide's DrawingML and returns its text. Paragraphs
// become lines; table cells in a row are joined with " | ".
func slideText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		out    strings.Builder
		line   strings.Builder
		cells  []string
		inText bool
		inCell bool
	)

	flushLine := func() {
		s := strings.TrimSpace(line.String())
		line.Reset()
		if s == "" {
			return
		}
		out.WriteString(s)
		out.WriteByte('\n')
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", eris.Wrap(err, "ocr: parse slide xml")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tc":
				inCell = true
			case "tr":
				cells = cells[:0]
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if inCell {
					line.WriteByte(' ')
				} else {
					flushLine()
				}
			case "tc":
				cells = append(cells, strings.TrimSpace(line.String()))
				line.Reset()
				inCell = false
			case "tr":
				line.WriteString(strings.Join(cells, " | "))
				flushLine()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	flushLine()
	return strings.TrimSpace(out.String()), nil
}
