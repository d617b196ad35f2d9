// Package docconv converts documents between images, PDF, office and text
// formats by running each job through an ordered chain of strategies.
//
// # Quick Start
//
// Create an engine, submit a job, and close when done:
//
//	eng, err := docconv.NewEngine()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	art, err := eng.Submit(ctx, docconv.Job{
//	    Class: docconv.ClassImagesToPDF,
//	    Files: []docconv.File{
//	        {Name: "page1.jpg", Data: page1},
//	        {Name: "page2.png", Data: page2},
//	    },
//	})
//	if err != nil {
//	    fmt.Println(docconv.UserMessage(err))
//	    return
//	}
//	os.WriteFile(art.Name, art.Data, 0644)
//
// # Conversion Classes
//
//   - images-to-pdf: one or more images become a multi-page PDF
//   - pdf-to-images: every page is rasterized; several pages are zipped
//   - office-to-pdf: Word and Excel documents
//   - text-to-pdf: plain text, Markdown and HTML
//
// # Strategies
//
// Each class has strategies ordered by priority. In-process strategies
// (image-compose, raster-mupdf, docx-text, xlsx-table, text-render) need no
// external program. The others wrap LibreOffice, Pandoc, pdftoppm,
// ImageMagick or headless Chrome, and run only when a Probe found the tool.
// The first strategy that returns a valid artifact wins; if all fail,
// Submit returns an *ExhaustedError listing every attempt.
//
// Heavy strategies hold a slot of the concurrency gate while they run. A
// job that cannot get a temporary workspace fails fast with
// ErrResourceExhausted instead of queueing.
//
// # Configuration
//
// Use functional options to customize the engine:
//
//	eng, err := docconv.NewEngine(
//	    docconv.WithSettings(settings),
//	    docconv.WithLogger(logger),
//	    docconv.WithRecorder(recorder),
//	)
//
// Settings carries limits, defaults, feature switches and tool paths.
// Completed jobs are reported to the Recorder as Events.
//
// # Errors
//
// Kind classifies any error returned by Submit, and UserMessage turns it
// into a single sentence suitable for end users. Strategy diagnostics are
// only logged.
package docconv
