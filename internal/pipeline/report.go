package pipeline

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
)

// WriteMarkdown renders r as a Markdown summary.
func WriteMarkdown(w io.Writer, r *Report) error {
	md := markdown.NewMarkdown(w)

	md.H1("Ingestion Report")
	md.PlainText("")

	mode := "embedded"
	if r.DryRun {
		mode = "dry run (not embedded)"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + r.Seed + "`"},
			{"Namespace", "`" + r.Namespace + "`"},
			{"Mode", mode},
			{"Duration", r.Duration.Round(time.Millisecond).String()},
		},
	})
	md.PlainText("")

	md.H2("Crawl")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Pages visited", strconv.Itoa(r.Crawl.PagesVisited)},
			{"Pages rendered", strconv.Itoa(r.Crawl.PagesRendered)},
			{"Render errors", strconv.Itoa(r.Crawl.RenderErrors)},
			{"Render timeouts", strconv.Itoa(r.Crawl.RenderTimeouts)},
			{"Empty pages", strconv.Itoa(r.Crawl.EmptyPages)},
			{"Links found", strconv.Itoa(r.Crawl.LinksFound)},
		},
	})
	md.PlainText("")

	md.H2("Index")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Documents kept", strconv.Itoa(r.Documents)},
			{"Documents dropped", strconv.Itoa(r.Dropped)},
			{"Chunks", strconv.Itoa(r.Chunks)},
			{"Records stored", strconv.Itoa(r.Indexed)},
		},
	})
	md.PlainText("")

	md.H2("Sources")
	md.PlainText("")
	if len(r.Sources) == 0 {
		md.PlainText("No documents were kept.")
	} else {
		md.BulletList(r.Sources...)
	}

	return md.Build()
}
