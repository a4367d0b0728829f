package pdf

import (
	"bytes"
	"fmt"
)

// BlankDocument returns a minimal PDF with pages empty pages of the given
// size in points.
func BlankDocument(pages int, width, height float64) ([]byte, error) {
	if pages < 1 {
		return nil, fmt.Errorf("blank document needs at least one page, got %d", pages)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("blank page size must be positive, got %.2fx%.2f", width, height)
	}

	// Object layout: 1 catalog, 2 page tree, then for page i the page object
	// 3+2i and its own empty content stream 4+2i. Stamping appends to a page's
	// content stream, so pages must not share one.
	objects := make([]string, 0, 2+2*pages)
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := new(bytes.Buffer)
	for i := 0; i < pages; i++ {
		if i > 0 {
			kids.WriteByte(' ')
		}
		fmt.Fprintf(kids, "%d 0 R", 3+2*i)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages))

	for i := 0; i < pages; i++ {
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %s %s] /Resources << >> /Contents %d 0 R >>",
				formatNumber(width), formatNumber(height), 4+2*i),
			"<< /Length 0 >>\nstream\n\nendstream")
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes(), nil
}

func formatNumber(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
