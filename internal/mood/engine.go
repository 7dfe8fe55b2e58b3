package mood

import (
	"math/rand"
	"regexp"
	"sync"
	"time"
)

// Base is the coarse mood bucket driving the prompt fragment.
type Base string

const (
	Positive Base = "positive"
	Neutral  Base = "neutral"
	Negative Base = "negative"
)

const historyCap = 10

type trigger struct {
	re     *regexp.Regexp
	weight float64
}

// \b is ASCII-only in Go regexp, so the Cyrillic alternatives go without
// word boundaries.
var posTriggers = []trigger{
	{regexp.MustCompile(`(?i)спасибо|благодарю|\b(thanks|thank you)\b`), 0.15},
	{regexp.MustCompile(`(?i)круто|супер|отлично|\b(awesome|great|nice)\b`), 0.1},
	{regexp.MustCompile(`(?i)(\x{2764}|\x{2665})|сердечко`), 0.2},
}

var negTriggers = []trigger{
	{regexp.MustCompile(`(?i)грустно|печально|\bsad\b`), 0.1},
	{regexp.MustCompile(`(?i)злюсь|ненавижу|бесит|\b(hate|angry)\b`), 0.2},
	{regexp.MustCompile(`(\x{2639}|\x{26D4})`), 0.15},
}

var subStates = map[Base][]string{
	Positive: {"радостная", "воодушевленная", "любопытная"},
	Neutral:  {"сосредоточенная", "наблюдательная", "аналитическая"},
	Negative: {"раздраженная", "уставшая", "скептическая"},
}

// Score is the 3-way mood vector. Positive+negative+neutral sums to 1 after
// analysis of any text.
type Score struct {
	Positive float64
	Negative float64
	Neutral  float64
}

type historyEntry struct {
	Base      Base
	SubState  string
	Timestamp time.Time
}

// Engine keeps a probabilistic mood state recomputed on every analyzed
// message. No error conditions; state is a pure function of the inputs
// apart from the intentional sub-state randomization.
type Engine struct {
	mu       sync.Mutex
	score    Score
	base     Base
	subState string
	history  []historyEntry
	rand     *rand.Rand
}

func NewEngine() *Engine {
	return &Engine{
		score:    Score{Neutral: 1},
		base:     Neutral,
		subState: subStates[Neutral][0],
		rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Analyze re-scores the mood vector against text and rolls a new sub-state.
func (e *Engine) Analyze(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var pos, neg float64
	for _, t := range posTriggers {
		pos += float64(len(t.re.FindAllString(text, -1))) * t.weight
	}
	for _, t := range negTriggers {
		neg += float64(len(t.re.FindAllString(text, -1))) * t.weight
	}

	if total := pos + neg; total > 1 {
		pos /= total
		neg /= total
	}
	e.score = Score{Positive: pos, Negative: neg, Neutral: 1 - (pos + neg)}

	switch {
	case e.score.Positive > e.score.Negative && e.score.Positive > e.score.Neutral:
		e.base = Positive
	case e.score.Negative > e.score.Positive && e.score.Negative > e.score.Neutral:
		e.base = Negative
	default:
		e.base = Neutral
	}

	states := subStates[e.base]
	e.subState = states[e.rand.Intn(len(states))]

	e.history = append(e.history, historyEntry{Base: e.base, SubState: e.subState, Timestamp: time.Now()})
	if len(e.history) > historyCap {
		e.history = e.history[len(e.history)-historyCap:]
	}
}

func (e *Engine) Base() Base {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.base
}

func (e *Engine) ScoreVector() Score {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.score
}

func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

// PromptFragment maps the base mood to a canned stylistic directive for the
// system turn.
func (e *Engine) PromptFragment() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.base {
	case Positive:
		return "Ты чувствуешь себя " + e.subState + " и полна энергии. " +
			"Отвечай тепло и с энтузиазмом, можешь использовать дружелюбные эмодзи. " +
			"Проявляй искренний интерес к собеседнику."
	case Negative:
		return "Ты " + e.subState + ". Отвечай кратко, можешь позволить себе " +
			"легкий сарказм (но не грубость). Если запрос важный, соберись и ответь максимально четко."
	default:
		return "Ты в состоянии \"" + e.subState + "\". Сохраняй профессиональный " +
			"и вежливый тон. Будь точной в формулировках, но не слишком сухой."
	}
}
