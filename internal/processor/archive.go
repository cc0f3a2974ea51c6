package processor

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/LaazAlae/alaeautomates-backend/internal/statements"
)

// archiveOrder fixes the member order inside the ZIP so identical inputs
// produce identical archives.
var archiveOrder = []statements.Destination{
	statements.DestinationDNM,
	statements.DestinationForeign,
	statements.DestinationNatioSingle,
	statements.DestinationNatioMulti,
}

// BuildArchive renders the resolved statement set as a ZIP archive with one
// CSV manifest per destination plus a summary.json of the session statistics.
func BuildArchive(resolved []statements.ClassifiedStatement, stats statements.Statistics) ([]byte, error) {
	grouped := make(map[statements.Destination][]statements.ClassifiedStatement, len(archiveOrder))
	for _, item := range resolved {
		dest := item.Classification.Destination
		grouped[dest] = append(grouped[dest], item)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	summary, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal summary: %w", err)
	}
	if err := writeMember(zw, "summary.json", summary); err != nil {
		return nil, err
	}

	for _, dest := range archiveOrder {
		items := grouped[dest]
		if len(items) == 0 {
			continue
		}
		manifest, err := renderManifest(items)
		if err != nil {
			return nil, fmt.Errorf("render %s manifest: %w", dest, err)
		}
		if err := writeMember(zw, manifestName(dest), manifest); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}

func manifestName(dest statements.Destination) string {
	switch dest {
	case statements.DestinationDNM:
		return "dnm.csv"
	case statements.DestinationForeign:
		return "foreign.csv"
	case statements.DestinationNatioSingle:
		return "natio_single.csv"
	case statements.DestinationNatioMulti:
		return "natio_multi.csv"
	default:
		return "other.csv"
	}
}

func writeMember(zw *zip.Writer, name string, data []byte) error {
	member, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create member %s: %w", name, err)
	}
	if _, err := member.Write(data); err != nil {
		return fmt.Errorf("write member %s: %w", name, err)
	}
	return nil
}

func renderManifest(items []statements.ClassifiedStatement) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	header := []string{"company_name", "pages", "location", "similar_to", "percentage", "user_answered"}
	if err := cw.Write(header); err != nil {
		return nil, err
	}
	for _, item := range items {
		row := []string{
			item.Record.CompanyName,
			strconv.Itoa(item.Record.Pages),
			item.Classification.Location,
			item.Classification.SimilarTo,
			strconv.FormatFloat(item.Classification.Percentage, 'f', 1, 64),
			item.UserAnswered,
		}
		if err := cw.Write(row); err != nil {
			return nil, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
