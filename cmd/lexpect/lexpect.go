package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/Comcast/laters/journal"
	"github.com/Comcast/laters/tools"
)

func main() {

	var (
		inputFilename = flag.String("f", "sessions/demo.test.yaml", "filename for test session")
		journalFile   = flag.String("j", "", "optional journal filename")
		htmlFile      = flag.String("html", "", "optional filename for an HTML report of the run")
		verbose       = flag.Bool("v", false, "verbosity")
		timeout       = flag.Duration("t", 10*time.Second, "main timeout")
		demo          = flag.Bool("demo", false, "run the built-in demo session instead")
	)

	flag.Parse()

	var (
		s   *tools.Session
		err error
	)
	if *demo {
		s, err = tools.DemoSession()
	} else {
		s, err = tools.ReadSession(*inputFilename)
	}
	if err != nil {
		panic(err)
	}

	if err = s.Compile(); err != nil {
		panic(err)
	}

	s.Verbose = *verbose

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *journalFile != "" {
		j, err := journal.NewJournal(*journalFile)
		if err != nil {
			panic(err)
		}
		if err = j.Open(ctx); err != nil {
			panic(err)
		}
		defer j.Close(ctx)
		s.Journal = j
	}

	err = s.Run(ctx)

	// Render the report even when the run broke.  That's when you
	// want to look at it.
	if *htmlFile != "" {
		f, ferr := os.Create(*htmlFile)
		if ferr != nil {
			panic(ferr)
		}
		if ferr = tools.RenderSessionPage(s, f, nil, true); ferr != nil {
			panic(ferr)
		}
		if ferr = f.Close(); ferr != nil {
			panic(ferr)
		}
	}

	if err != nil {
		panic(err)
	}
}
