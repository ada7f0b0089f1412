package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/annel0/blockworld/internal/world/region"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	summary := flag.Bool("summary", false, "Только сводка без списка ячеек")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-summary] r.X.Z.mcr...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	failed := false
	for _, path := range flag.Args() {
		if err := inspect(path, *summary); err != nil {
			log.Printf("❌ %s: %v", path, err)
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inspect(path string, summary bool) error {
	rf, err := region.OpenFile(path, false, false)
	if err != nil {
		return err
	}
	defer rf.Close()

	entries, err := rf.Entries()
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Offset < entries[j].Offset })

	sectors := 0
	bytes := 0
	for _, e := range entries {
		sectors += e.Sectors
		bytes += e.Length
	}

	fmt.Printf("📦 %s: %d чанков, %d секторов (%d KiB), полезных данных %d байт\n",
		rf.Path(), len(entries), sectors, sectors*region.SectorSize/1024, bytes)
	if summary || len(entries) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tOFFSET\tSECTORS\tLENGTH\tCOMPRESSION\tTIMESTAMP")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d,%d\t%d\t%d\t%d\t%s\t%s\n",
			e.Local.X, e.Local.Z, e.Offset, e.Sectors, e.Length,
			compression(e.Compression), e.Timestamp.UTC().Format(timeFormat))
	}
	return tw.Flush()
}

func compression(c byte) string {
	switch c {
	case region.CompressionGzip:
		return "gzip"
	case region.CompressionZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}
