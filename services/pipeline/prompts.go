package pipeline

import (
	"fmt"
	"strings"

	"github.com/sahilchouksey/module-enhancer/utils"
)

const (
	conciseWordLimit = 280
	quizSnippetRunes = 3000
)

const writerSystemPrompt = `You are an instructional designer writing learning modules for vocational and professional learners.
Write in clear markdown. Use ## headings, short paragraphs and bullet lists.
Mark the most important technical terms in **bold** the first time they appear.
Where a process or relationship helps understanding, include one mermaid flowchart in a fenced code block.
Never invent facts that contradict the source material.`

func audienceLine(in Input) string {
	parts := make([]string, 0, 3)
	if in.ProfessionName != "" {
		parts = append(parts, "learners training as "+in.ProfessionName)
	}
	if in.SubjectName != "" {
		parts = append(parts, "subject: "+in.SubjectName)
	}
	if in.ModuleNumber > 0 {
		parts = append(parts, fmt.Sprintf("module %d of the course", in.ModuleNumber))
	}
	if len(parts) == 0 {
		return ""
	}
	return "Audience: " + strings.Join(parts, "; ") + "\n"
}

func instructionsBlock(in Input) string {
	if strings.TrimSpace(in.InstructionOverride) == "" {
		return ""
	}
	return "Additional instructions:\n" + strings.TrimSpace(in.InstructionOverride) + "\n"
}

func detailedPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the following module titled %q into a detailed, well-structured lesson.\n", in.Title)
	b.WriteString(audienceLine(in))
	if in.SubjectContext != "" {
		fmt.Fprintf(&b, "Course context: %s\n", in.SubjectContext)
	}
	b.WriteString(instructionsBlock(in))
	b.WriteString("Cover the core ideas, a worked workplace example, common mistakes and a short summary.\n\n")
	b.WriteString("Source material:\n")
	b.WriteString(in.RawContent)
	return b.String()
}

func concisePrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a concise version of the module titled %q in at most %d words.\n", in.Title, conciseWordLimit)
	b.WriteString(audienceLine(in))
	b.WriteString(instructionsBlock(in))
	b.WriteString("Keep only the essentials a learner must remember. Bold the key terms.\n\n")
	b.WriteString("Source material:\n")
	b.WriteString(in.RawContent)
	return b.String()
}

func searchQuery(title, field string) string {
	if field == "" || field == GeneralField {
		return title + " explained"
	}
	return fmt.Sprintf("%s %s explained", title, field)
}

func videoTermsPrompt(title, content, field string) string {
	return fmt.Sprintf(`Suggest 1 to 3 short YouTube search phrases (2-4 words each) for educational videos about the module below.
Field: %s
Title: %s
Content:
%s

Respond with a JSON array of strings only, for example ["phrase one", "phrase two"].`, field, title, utils.TruncateRunes(content, 1500))
}

func classifyTermsPrompt(title, content string) string {
	return fmt.Sprintf(`Analyze the module below and classify its three most important concepts.
Title: %s
Content:
%s

Respond as JSON: {"terms": ["concept", "concept", "concept"]}`, title, utils.TruncateRunes(content, 1500))
}

func definitionPrompt(term, field string) string {
	return fmt.Sprintf("In one sentence of at most 30 words, define %q for a learner in the %s field. Reply with the sentence only.", term, field)
}

func quizPrompt(title, snippet string, set, count int) string {
	return fmt.Sprintf(`Create quiz set %d for the module %q.
Write exactly %d multiple-choice questions based only on the content below.
Each question must have exactly 4 options, one correct answer and a one-sentence explanation.

Content:
%s

Respond with JSON only in this shape:
{"questions":[{"question":"...","options":["a","b","c","d"],"correctAnswer":0,"explanation":"..."}]}`, set, title, count, snippet)
}
