package eval

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

var detailHeader = []string{
	"article_id", "pred_topic", "gt_topic", "pred_subtopic", "gt_subtopic", "topic_match", "subtopic_match",
}

func detailRow(d TopicDetail) []string {
	return []string{
		d.ArticleID,
		d.PredTopic,
		d.GTTopic,
		d.PredSubtopic,
		d.GTSubtopic,
		strconv.FormatBool(d.TopicMatch),
		strconv.FormatBool(d.SubtopicMatch),
	}
}

// WriteDetailsCSV writes the topic detail trail as CSV with a header row.
func WriteDetailsCSV(w io.Writer, details []TopicDetail) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(detailHeader); err != nil {
		return eris.Wrap(err, "eval: write csv header")
	}
	for _, d := range details {
		if err := cw.Write(detailRow(d)); err != nil {
			return eris.Wrapf(err, "eval: write csv row %s", d.ArticleID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "eval: flush csv")
}

// WriteDetailsXLSX writes a workbook with a "summary" sheet holding the
// scalar metrics and a "topic_details" sheet with one row per matched article.
func WriteDetailsXLSX(path string, r *Result) error {
	f := xlsx.NewFile()

	summary, err := f.AddSheet("summary")
	if err != nil {
		return eris.Wrap(err, "xlsx: add summary sheet")
	}
	addStringRow(summary, []string{"metric", "value"})
	for _, name := range metricOrder {
		row := summary.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetFloat(r.Metrics()[name])
	}
	row := summary.AddRow()
	row.AddCell().SetString("total_matched")
	row.AddCell().SetInt(r.TopicMetrics.TotalMatched)

	details, err := f.AddSheet("topic_details")
	if err != nil {
		return eris.Wrap(err, "xlsx: add details sheet")
	}
	addStringRow(details, detailHeader)
	for _, d := range r.TopicMetrics.Details {
		row := details.AddRow()
		for _, v := range detailRow(d)[:5] {
			row.AddCell().SetString(v)
		}
		row.AddCell().SetBool(d.TopicMatch)
		row.AddCell().SetBool(d.SubtopicMatch)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "xlsx: create dir %s", dir)
		}
	}
	return eris.Wrapf(f.Save(path), "xlsx: save %s", path)
}

// metricOrder fixes the row order of the summary sheet.
var metricOrder = []string{
	"entity_precision", "entity_recall", "entity_f1",
	"role_precision", "role_recall", "role_f1",
	"topic_accuracy", "subtopic_accuracy", "coverage",
}

func addStringRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().SetString(c)
	}
}
