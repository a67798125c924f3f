package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sahilchouksey/module-enhancer/model"
	"github.com/sahilchouksey/module-enhancer/services/adapters"
	"github.com/sahilchouksey/module-enhancer/utils/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectField(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		context string
		want    string
	}{
		{"title keyword", "Ohm's law and voltage", "", "", "electrical"},
		{"plural in content", "Photosynthesis", "Green plants use sunlight", "", "agriculture"},
		{"subject context", "Module 1", "Introduction", "A course on welding safety", "welding"},
		{"substring is not a word", "Archery", "Aim at the target", "", GeneralField},
		{"nothing matches", "Greetings", "Say hello", "", GeneralField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectField(DefaultFieldRules, tt.title, tt.content, tt.context))
		})
	}
}

func TestLoadFieldRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - field: marine
    keywords: [hull, propeller]
  - field: aviation
    keywords: [aircraft]
`), 0o644))

	rules, err := LoadFieldRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "marine", DetectField(rules, "Hull inspection", "", ""))
	assert.Equal(t, GeneralField, DetectField(rules, "Voltage", "", ""))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rules:\n  - field: empty\n"), 0o644))
	_, err = LoadFieldRules(bad)
	assert.Error(t, err)

	_, err = LoadFieldRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseQuizSet(t *testing.T) {
	invalid := []model.QuizQuestion{
		{Question: "Three options?", Options: []string{"a", "b", "c"}, CorrectAnswer: 0},
		{Question: "Bad answer?", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 5},
		{Question: "", Options: []string{"a", "b", "c", "d"}, CorrectAnswer: 1},
	}

	t.Run("fenced with invalid questions", func(t *testing.T) {
		raw := "```json\n" + quizJSON(t, append(validQuestions(6), invalid...)) + "\n```"
		set, err := parseQuizSet(raw, 10, 5)
		require.NoError(t, err)
		assert.Len(t, set, 6)
	})

	t.Run("too few valid", func(t *testing.T) {
		_, err := parseQuizSet(quizJSON(t, append(validQuestions(4), invalid...)), 10, 5)
		assert.Error(t, err)
	})

	t.Run("bare array capped", func(t *testing.T) {
		raw := quizJSON(t, validQuestions(12))
		raw = raw[strings.Index(raw, "[") : strings.LastIndex(raw, "]")+1]
		set, err := parseQuizSet(raw, 10, 5)
		require.NoError(t, err)
		assert.Len(t, set, 10)
	})

	t.Run("not json", func(t *testing.T) {
		_, err := parseQuizSet("I cannot help with that.", 10, 5)
		assert.ErrorIs(t, err, ErrParse)
	})
}

func TestGenerateQuizzes_RetriesRateLimit(t *testing.T) {
	quiz := quizJSON(t, validQuestions(5))
	limited := false
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		if !limited {
			limited = true
			return "", &adapters.RateLimitError{ServiceError: &adapters.ServiceError{Provider: "fake", StatusCode: 429, Cause: errors.New("slow down")}}
		}
		return quiz, nil
	}}
	cfg := testConfig()
	cfg.QuizCalls = 2

	p := New(cfg, Deps{Text: text}, logger.NewNop())
	sets := p.generateQuizzes(context.Background(), logger.NewNop(), "Photosynthesis", photosynthesisRaw)

	assert.Len(t, sets, 2)
	assert.Equal(t, 3, text.count(markerQuiz))
}

func TestGenerateQuizzes_DropsBadSets(t *testing.T) {
	good := quizJSON(t, validQuestions(7))
	call := 0
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		call++
		switch call {
		case 1:
			return "not a quiz", nil
		case 2:
			return "", errors.New("server error")
		}
		return good, nil
	}}
	cfg := testConfig()
	cfg.QuizCalls = 3

	p := New(cfg, Deps{Text: text}, logger.NewNop())
	sets := p.generateQuizzes(context.Background(), logger.NewNop(), "Photosynthesis", photosynthesisRaw)

	require.Len(t, sets, 1)
	assert.Len(t, sets[0], 7)
}

func TestVideoTerms_Strategies(t *testing.T) {
	fail := errors.New("down")
	tests := []struct {
		name     string
		title    string
		raw      string
		terms    func() (string, error)
		classify func() (string, error)
		want     []string
	}{
		{
			name:  "strict json",
			title: "Photosynthesis",
			terms: func() (string, error) { return `["light reactions", "calvin cycle"]`, nil },
			want:  []string{"light reactions", "calvin cycle"},
		},
		{
			name:  "json inside prose",
			title: "Photosynthesis",
			terms: func() (string, error) { return `Sure! ["leaf anatomy"] Hope that helps.`, nil },
			want:  []string{"leaf anatomy"},
		},
		{
			name:     "classification call",
			title:    "Photosynthesis",
			terms:    func() (string, error) { return "", fail },
			classify: func() (string, error) { return `{"terms": ["chloroplast structure"]}`, nil },
			want:     []string{"chloroplast structure"},
		},
		{
			name:     "keyword sniffing",
			title:    "Photosynthesis basics",
			raw:      "Green plants use sunlight",
			terms:    func() (string, error) { return "", fail },
			classify: func() (string, error) { return "no idea", nil },
			want:     []string{"photosynthesis", "plant"},
		},
		{
			name:     "title word",
			title:    "Zebra Crossings",
			raw:      "Look both ways.",
			terms:    func() (string, error) { return "", fail },
			classify: func() (string, error) { return "", fail },
			want:     []string{"Zebra"},
		},
		{
			name:  "deduplicated and capped",
			title: "Photosynthesis",
			terms: func() (string, error) { return `["Leaf", "leaf", "root", "stem", "flower"]`, nil },
			want:  []string{"Leaf", "root", "stem"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
				if strings.Contains(req.Prompt, markerClassify) {
					return tt.classify()
				}
				return tt.terms()
			}}
			p := New(testConfig(), Deps{Text: text}, logger.NewNop())

			got := p.videoTerms(context.Background(), logger.NewNop(), tt.title, tt.raw, tt.raw, "agriculture")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, text.count(markerTerms), "the primary answer is requested once")
		})
	}
}

func TestResolveConcepts(t *testing.T) {
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		if strings.Contains(req.Prompt, `"stomata"`) {
			return "", errors.New("down")
		}
		return "Tiny pores on a leaf.\nExtra line.", nil
	}}
	videos := &fakeVideos{}
	p := New(testConfig(), Deps{Text: text, Videos: videos}, logger.NewNop())

	concepts := p.resolveConcepts(context.Background(), logger.NewNop(), []string{"guard cells", "stomata", "xylem"}, "agriculture")

	require.Len(t, concepts, 1, "the failed concept without videos is dropped and the list is capped")
	assert.Equal(t, "Guard cells", concepts[0].Concept)
	assert.Equal(t, "Tiny pores on a leaf.", concepts[0].Definition)
	assert.NotNil(t, concepts[0].Videos)
	assert.Equal(t, []string{"guard cells", "stomata"}, videos.queries)
}

func TestResolveConcepts_FallbackDefinition(t *testing.T) {
	text := &fakeText{respond: func(ctx context.Context, req adapters.TextRequest) (string, error) {
		return "", errors.New("down")
	}}
	videos := &fakeVideos{results: []model.VideoResult{{VideoID: "a"}, {VideoID: "b"}, {VideoID: "c"}, {VideoID: "d"}}}
	p := New(testConfig(), Deps{Text: text, Videos: videos}, logger.NewNop())

	concepts := p.resolveConcepts(context.Background(), logger.NewNop(), []string{"xylem"}, "agriculture")

	require.Len(t, concepts, 1)
	assert.Equal(t, "Xylem: a key concept in agriculture.", concepts[0].Definition)
	assert.Len(t, concepts[0].Videos, 3)
}

func TestEnrich(t *testing.T) {
	long := strings.Repeat("word ", 200)
	search := &fakeSearch{results: []adapters.SearchResult{
		{Title: "<b>Alpha</b>", URL: "https://a.example", Content: "<p>Alpha is a **long** enough snippet of text that describes the topic well.</p>"},
		{Title: "Alpha again", URL: "https://a.example", Content: "Duplicate URL with plenty of words to pass the minimum length check."},
		{Title: "Short", URL: "https://short.example", Content: "Too short."},
		{Title: "No URL", URL: "", Content: "A snippet without a URL that is long enough to otherwise be used."},
		{Title: "Long", URL: "https://long.example", Content: long},
	}}
	p := New(testConfig(), Deps{Search: search}, logger.NewNop())

	text, refs := p.enrich(context.Background(), logger.NewNop(), "Body", "Photosynthesis", "agriculture")

	require.Len(t, refs, 2)
	assert.Equal(t, "Alpha", refs[0].Title)
	assert.NotContains(t, refs[0].Text, "**")
	assert.NotContains(t, refs[0].Text, "<p>")
	assert.True(t, strings.HasSuffix(refs[1].Text, "..."))
	assert.LessOrEqual(t, utf8.RuneCountInString(refs[1].Text), maxSnippetRunes+3)

	assert.True(t, strings.HasPrefix(text, "Body\n\n---\n\n"+furtherInfoHeading))
	assert.Contains(t, text, "- [Alpha](https://a.example): Alpha is a long enough")
}

func TestEnrich_SearchFailureKeepsText(t *testing.T) {
	p := New(testConfig(), Deps{Search: &fakeSearch{err: errors.New("down")}}, logger.NewNop())

	text, refs := p.enrich(context.Background(), logger.NewNop(), "Body", "Photosynthesis", "agriculture")
	assert.Equal(t, "Body", text)
	assert.Empty(t, refs)
}

func TestLinkKeywords(t *testing.T) {
	p := New(testConfig(), Deps{}, logger.NewNop())

	t.Run("bounded", func(t *testing.T) {
		var b strings.Builder
		for i := 1; i <= 10; i++ {
			fmt.Fprintf(&b, "Term **keyword%02d** here.\n", i)
		}
		out := p.linkKeywords(context.Background(), b.String(), nil, 3)
		assert.Equal(t, 3, strings.Count(out, "](https://en.wikipedia.org/wiki/"))
		assert.Equal(t, 7, strings.Count(out, "**")/2)
		assert.Contains(t, out, "[keyword01](https://en.wikipedia.org/wiki/keyword01)")
		assert.Contains(t, out, "**keyword04**")
	})

	t.Run("skips fences duplicates and short phrases", func(t *testing.T) {
		in := "```\n**inside**\n```\n**ab** **Glucose** and **glucose** and **sugar (simple)** and **starch**"
		out := p.linkKeywords(context.Background(), in, nil, 5)
		assert.Contains(t, out, "**inside**")
		assert.Contains(t, out, "**ab**")
		assert.Contains(t, out, "[Glucose](https://en.wikipedia.org/wiki/Glucose)")
		assert.Contains(t, out, "**glucose**")
		assert.Contains(t, out, "**sugar (simple)**")
		assert.Contains(t, out, "[starch](https://en.wikipedia.org/wiki/starch)")
	})

	t.Run("reference title supplies the url", func(t *testing.T) {
		refs := []reference{{Title: "All about Chlorophyll", URL: "https://bio.example/chl"}}
		out := p.linkKeywords(context.Background(), "Green **chlorophyll** pigment", refs, 3)
		assert.Equal(t, "Green [chlorophyll](https://bio.example/chl) pigment", out)
	})

	t.Run("delay between links", func(t *testing.T) {
		cfg := testConfig()
		cfg.KeywordLinkDelay = 20 * time.Millisecond
		slow := New(cfg, Deps{}, logger.NewNop())

		started := time.Now()
		slow.linkKeywords(context.Background(), "**one** **two** **three**", nil, 3)
		assert.GreaterOrEqual(t, time.Since(started), 40*time.Millisecond)
	})

	t.Run("bold inside a link is left alone", func(t *testing.T) {
		in := "See [**Chlorophyll**](https://bio.example/chl)"
		assert.Equal(t, in, p.linkKeywords(context.Background(), in, nil, 3))

		out := p.linkKeywords(context.Background(), in+" and **Glucose**", nil, 1)
		assert.Equal(t, in+" and [Glucose](https://en.wikipedia.org/wiki/Glucose)", out)
	})

	t.Run("bold inside inline code is left alone", func(t *testing.T) {
		in := "Call `f(**kwargs**)` to pass options"
		assert.Equal(t, in, p.linkKeywords(context.Background(), in, nil, 3))
	})

	t.Run("underscore strong and autolinks", func(t *testing.T) {
		in := "Read <https://x.example/**stem**> about __xylem__"
		out := p.linkKeywords(context.Background(), in, nil, 3)
		assert.Equal(t, "Read <https://x.example/**stem**> about [xylem](https://en.wikipedia.org/wiki/xylem)", out)
	})
}

func TestEncyclopediaURL(t *testing.T) {
	assert.Equal(t, "https://en.wikipedia.org/wiki/carbon_dioxide", EncyclopediaURL(" carbon dioxide "))
	assert.Equal(t, "https://en.wikipedia.org/wiki/what%3F", EncyclopediaURL("what?"))
}

type fakeSpeech struct {
	text string
}

func (f *fakeSpeech) Synthesize(ctx context.Context, text string) (adapters.Audio, error) {
	f.text = text
	return adapters.Audio{Data: []byte("mp3"), ContentType: "audio/mpeg", Extension: ".mp3"}, nil
}

type fakeUploader struct {
	key         string
	contentType string
}

func (f *fakeUploader) UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.key = key
	f.contentType = contentType
	return "https://cdn.example.com/" + key, nil
}

func TestNarrationText(t *testing.T) {
	md := "## Title\n\nSome **bold** [link](http://x) text.\n\n```mermaid\ngraph TD\nA-->B\n```\n\n- item one\n\n---\n\n" +
		furtherInfoHeading + "\n\n- [R](https://r.example): r"
	assert.Equal(t, "Title Some bold link text. item one", NarrationText(md))

	assert.Equal(t, "Call f(x) then read Leaves .",
		NarrationText("Call `f(x)` then read [**Leaves**](https://bio.example) ![diagram](d.png)."))

	long := strings.Repeat("a", maxNarrationRunes+100)
	assert.Equal(t, maxNarrationRunes, utf8.RuneCountInString(NarrationText(long)))
}

func TestSpeechNarrator(t *testing.T) {
	speech := &fakeSpeech{}
	uploader := &fakeUploader{}
	n := NewSpeechNarrator(speech, uploader)

	url, err := n.Narrate(context.Background(), "Photosynthesis: Basics!", "**Light** becomes sugar.")
	require.NoError(t, err)

	assert.Equal(t, "Light becomes sugar.", speech.text)
	assert.True(t, strings.HasPrefix(uploader.key, "narration/"))
	assert.True(t, strings.HasSuffix(uploader.key, "_photosynthesis-basics.mp3"))
	assert.Equal(t, "audio/mpeg", uploader.contentType)
	assert.Equal(t, "https://cdn.example.com/"+uploader.key, url)

	_, err = n.Narrate(context.Background(), "Empty", "```\ncode only\n```")
	assert.Error(t, err)
}
