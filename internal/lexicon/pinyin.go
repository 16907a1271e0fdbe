package lexicon

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"aetherime/internal/logging"
)

// Search tuning, carried over from the pinyin engine defaults.
const (
	beamSize    = 20
	nBest       = 2
	scoreFilter = 1.0
)

// Well-known install locations, checked when the env overrides are unset.
var (
	defaultDictPaths = []string{
		"/usr/share/libime/sc.dict",
		"/usr/local/share/libime/sc.dict",
	}
	defaultModelPaths = []string{
		"/usr/lib/x86_64-linux-gnu/libime/zh_CN.lm",
		"/usr/lib/aarch64-linux-gnu/libime/zh_CN.lm",
		"/usr/lib64/libime/zh_CN.lm",
		"/usr/lib/libime/zh_CN.lm",
		"/usr/local/lib/libime/zh_CN.lm",
	}
)

type dictEntry struct {
	word  string
	score float64
}

// Pinyin is the primary lexical backend. It loads the pinyin dictionary
// and the unigram language model from disk, lazily on first use, and ranks
// dictionary hits by dictionary score plus model weight.
type Pinyin struct {
	DictPath  string
	ModelPath string

	mu        sync.RWMutex
	once      sync.Once
	available bool
	status    string
	dict      map[string][]dictEntry
	model     map[string]float64

	log *logging.Logger
}

// NewPinyin creates a pinyin backend. Empty paths are resolved from the
// AETHERIME_LIBIME_DICT / AETHERIME_LIBIME_LM environment variables and
// then from the well-known install locations.
func NewPinyin(dictPath, modelPath string) *Pinyin {
	return &Pinyin{
		DictPath:  dictPath,
		ModelPath: modelPath,
		status:    "pinyin dictionary not loaded",
		log:       logging.Default().WithComponent("lexicon"),
	}
}

func envOrEmpty(name string) string {
	return os.Getenv(name)
}

func firstExistingPath(candidates []string) string {
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

func (p *Pinyin) resolvePaths() (dict, model string) {
	dict = p.DictPath
	if dict == "" {
		dict = envOrEmpty("AETHERIME_LIBIME_DICT")
	}
	if dict == "" {
		dict = firstExistingPath(defaultDictPaths)
	}

	model = p.ModelPath
	if model == "" {
		model = envOrEmpty("AETHERIME_LIBIME_LM")
	}
	if model == "" {
		model = firstExistingPath(defaultModelPaths)
	}
	return dict, model
}

func (p *Pinyin) setup() {
	p.once.Do(func() {
		p.reload()
	})
}

// reload (re)reads the dictionary and model files. Called once lazily and
// again by the watcher when a file changes.
func (p *Pinyin) reload() {
	dictPath, modelPath := p.resolvePaths()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.available = false
	p.dict = nil
	p.model = nil

	if dictPath == "" {
		p.status = "pinyin dict file not found (expect sc.dict)"
		return
	}

	dict, err := loadDict(dictPath)
	if err != nil {
		p.status = fmt.Sprintf("pinyin dict load failed: %v", err)
		return
	}
	p.dict = dict

	if modelPath != "" {
		model, err := loadModel(modelPath)
		if err != nil {
			p.log.Warn("language model load failed, ranking by dictionary only",
				"path", modelPath, "error", err)
		} else {
			p.model = model
		}
	}

	p.available = true
	p.status = "pinyin dictionary ready"
	p.log.Info("pinyin dictionary loaded", "path", dictPath, "entries", len(dict))
}

// loadDict reads a tab-separated dictionary: pinyin, word, optional score.
func loadDict(path string) (map[string][]dictEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dict := make(map[string][]dictEntry)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			continue
		}
		code := strings.ToLower(strings.ReplaceAll(fields[0], " ", ""))
		entry := dictEntry{word: fields[1]}
		if len(fields) >= 3 {
			if s, err := strconv.ParseFloat(fields[2], 64); err == nil {
				entry.score = s
			}
		}
		if entry.score > scoreFilter {
			continue
		}
		if len(dict[code]) < beamSize {
			dict[code] = append(dict[code], entry)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(dict) == 0 {
		return nil, fmt.Errorf("no entries in %s", path)
	}
	return dict, nil
}

// loadModel reads word weights: word, score per line.
func loadModel(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	model := make(map[string]float64)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), "\t")
		if len(fields) < 2 {
			continue
		}
		if s, err := strconv.ParseFloat(fields[1], 64); err == nil {
			model[fields[0]] = s
		}
	}
	return model, scanner.Err()
}

// Query implements Backend.
func (p *Pinyin) Query(code string, limit int) []string {
	if limit <= 0 || !validCode(code) {
		return nil
	}
	p.setup()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.available {
		return nil
	}

	entries := p.dict[strings.ToLower(strings.ReplaceAll(code, "'", ""))]
	if len(entries) == 0 {
		return nil
	}

	ranked := make([]dictEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return p.rank(ranked[i]) < p.rank(ranked[j])
	})

	if len(ranked) > beamSize {
		ranked = ranked[:beamSize]
	}

	words := make([]string, 0, len(ranked))
	for _, e := range ranked {
		words = append(words, e.word)
	}
	return appendUnique(nil, words, limit)
}

// rank combines the dictionary score with the model weight; lower is
// better, matching the dictionary file convention.
func (p *Pinyin) rank(e dictEntry) float64 {
	score := e.score
	if w, ok := p.model[e.word]; ok {
		score -= w / float64(nBest)
	}
	return score
}

// Available implements Backend.
func (p *Pinyin) Available() bool {
	p.setup()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.available
}

// Status implements Backend.
func (p *Pinyin) Status() string {
	p.setup()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
