// Command yomitanctl drives a yomitan-engine instance from the shell:
// importing archives, listing and reconfiguring dictionaries, running
// lookups, and — as a demonstration of driving the engine from an
// external collaborator — extracting and tokenizing a web article and
// looking up every token it contains.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-shiori/go-readability"

	"github.com/kotoba-dict/yomitan-engine/pkg/deinflect"
	"github.com/kotoba-dict/yomitan-engine/pkg/engine"
	"github.com/kotoba-dict/yomitan-engine/pkg/readerer"
	"github.com/kotoba-dict/yomitan-engine/pkg/store"
)

func main() {
	dataDirFlag := flag.String("data-dir", "yomitan-data", "Directory holding the engine's database and extracted media")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger := log.New(os.Stderr, "yomitanctl: ", log.LstdFlags)

	e, err := engine.Open(*dataDirFlag, logger)
	if err != nil {
		log.Fatalf("opening engine: %v", err)
	}
	defer e.Close()

	switch args[0] {
	case "import":
		runImport(e, args[1:])
	case "list":
		runList(e)
	case "enable":
		runSetEnabled(e, args[1:], true)
	case "disable":
		runSetEnabled(e, args[1:], false)
	case "priority":
		runSetPriority(e, args[1:])
	case "lookup":
		runLookup(e, args[1:])
	case "lookup-kanji":
		runLookupKanji(e, args[1:])
	case "read":
		runRead(ctx, e, args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `yomitanctl subcommands:
  import <archive.zip> [priority]
  list
  enable <dictionary-id>
  disable <dictionary-id>
  priority <dictionary-id> <priority>
  lookup <text> [byte-offset] [language]
  lookup-kanji <text> [byte-offset]
  read <url>`)
}

func runImport(e *engine.Engine, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: yomitanctl import <archive.zip> [priority]")
	}
	var priority int64
	if len(args) >= 2 {
		p, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			log.Fatalf("invalid priority %q: %v", args[1], err)
		}
		priority = p
	}

	archiveBytes, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("reading archive: %v", err)
	}

	result, err := e.ImportArchive(archiveBytes, priority)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}
	fmt.Printf("Imported %q as dictionary #%d (%d terms, %d kanji, %d media files)\n",
		result.DictionaryName, result.DictionaryID, result.TermCount, result.KanjiCount, result.MediaCount)
}

func runList(e *engine.Engine) {
	for _, d := range e.ListDictionaries() {
		status := "enabled"
		if !d.Enabled {
			status = "disabled"
		}
		fmt.Printf("#%d\t%s\tpriority=%d\t%s\n", d.ID, d.Name, d.Priority, status)
	}
}

func parseDictionaryID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		log.Fatalf("invalid dictionary id %q: %v", s, err)
	}
	return id
}

func runSetEnabled(e *engine.Engine, args []string, enabled bool) {
	if len(args) < 1 {
		log.Fatal("usage: yomitanctl enable|disable <dictionary-id>")
	}
	id := parseDictionaryID(args[0])
	if err := e.SetDictionaryEnabled(store.DictionaryID(id), enabled); err != nil {
		log.Fatalf("updating dictionary: %v", err)
	}
	fmt.Printf("Dictionary #%d enabled=%v\n", id, enabled)
}

func runSetPriority(e *engine.Engine, args []string) {
	if len(args) < 2 {
		log.Fatal("usage: yomitanctl priority <dictionary-id> <priority>")
	}
	id := parseDictionaryID(args[0])
	priority, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		log.Fatalf("invalid priority %q: %v", args[1], err)
	}
	if err := e.SetDictionaryPriority(store.DictionaryID(id), priority); err != nil {
		log.Fatalf("updating dictionary: %v", err)
	}
	fmt.Printf("Dictionary #%d priority=%d\n", id, priority)
}

func runLookup(e *engine.Engine, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: yomitanctl lookup <text> [byte-offset] [language]")
	}
	text := args[0]
	offset := 0
	if len(args) >= 2 {
		o, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid byte offset %q: %v", args[1], err)
		}
		offset = o
	}
	language := deinflect.Japanese
	if len(args) >= 3 {
		language = deinflect.ParseLanguage(args[2])
	}

	for _, entry := range e.Lookup(text, offset, language) {
		fmt.Printf("%s (%s) [dict #%d, freq=%d]\n", entry.Headword, entry.Reading, entry.DictionaryID, entry.Frequency)
		for _, c := range entry.Content {
			fmt.Printf("  %s\n", c)
		}
	}
}

func runLookupKanji(e *engine.Engine, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: yomitanctl lookup-kanji <text> [byte-offset]")
	}
	text := args[0]
	offset := 0
	if len(args) >= 2 {
		o, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatalf("invalid byte offset %q: %v", args[1], err)
		}
		offset = o
	}

	for _, entry := range e.LookupKanji(text, offset) {
		fmt.Printf("%s [%s] onyomi=%v kunyomi=%v meanings=%v\n",
			entry.Character, entry.DictionaryName, entry.Onyomi, entry.Kunyomi, entry.Meanings)
	}
}

// runRead demonstrates driving Lookup from an external text-processing
// collaborator: it fetches a URL, extracts readable article text, tokenizes
// it with the kagome-based analyzer, and looks up every token's surface
// form at its own byte offset within the sentence.
func runRead(ctx context.Context, e *engine.Engine, args []string) {
	if len(args) < 1 {
		log.Fatal("usage: yomitanctl read <url>")
	}
	targetURL := args[0]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		log.Fatalf("building request: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; yomitanctl/1.0)")

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("fetching %s: %v", targetURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("fetching %s: status %d", targetURL, resp.StatusCode)
	}

	const maxBodyBytes = 10 << 20
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		log.Fatalf("reading response body: %v", err)
	}
	body = readerer.SanitizeRuby(body)

	parsedURL, _ := url.Parse(targetURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsedURL)
	if err != nil {
		log.Fatalf("extracting article: %v", err)
	}
	fmt.Printf("Title: %s\n", article.Title)

	analyzer, err := readerer.NewAnalyzer()
	if err != nil {
		log.Fatalf("creating analyzer: %v", err)
	}

	sentences, err := analyzer.AnalyzeDocument(article.TextContent)
	if err != nil {
		log.Fatalf("analyzing article: %v", err)
	}

	for _, sentence := range sentences {
		offset := 0
		for _, token := range sentence.Tokens {
			// Analyze drops whitespace-only tokens, so locate where this
			// token starts instead of only summing earlier surface lengths
			i := strings.Index(sentence.Text[offset:], token.Surface)
			if i < 0 {
				continue
			}
			offset += i
			entries := e.Lookup(sentence.Text, offset, deinflect.Japanese)
			if len(entries) > 0 {
				fmt.Printf("%s -> %s (%d hits)\n", token.Surface, entries[0].Headword, len(entries))
			}
			offset += len(token.Surface)
		}
	}
}
