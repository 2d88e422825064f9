package extractor

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/smartats/ats-backend/internal/domain"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+?\d[\d()\-\s.]{7,}\d)`)
	yearsPattern = regexp.MustCompile(`(?i)(\d{1,2})\+?\s*years?`)
)

var knownSkills = []string{
	"Go", "Java", "Python", "JavaScript", "TypeScript", "C++", "Rust",
	"SQL", "PostgreSQL", "MySQL", "Redis", "MongoDB",
	"Kubernetes", "Docker", "AWS", "Terraform", "Kafka", "RabbitMQ",
	"React", "Vue", "Spring", "Django",
}

// HeuristicExtractor is the deterministic fallback used when no model API
// key is configured. It keeps the pipeline usable in local development and
// in tests.
type HeuristicExtractor struct{}

func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{}
}

func (e *HeuristicExtractor) Extract(_ context.Context, content []byte, fileName string) (domain.ResumeFields, error) {
	text := strings.TrimSpace(string(content))
	if len(text) < 20 {
		return domain.ResumeFields{}, fmt.Errorf("resume content too short to parse: %s", fileName)
	}

	fields := domain.ResumeFields{
		Name:  firstNonEmptyLine(text),
		Email: emailPattern.FindString(text),
		Phone: strings.TrimSpace(phonePattern.FindString(text)),
	}

	lowered := strings.ToLower(text)
	for _, skill := range knownSkills {
		if strings.Contains(lowered, strings.ToLower(skill)) {
			fields.Skills = append(fields.Skills, skill)
		}
	}

	if match := yearsPattern.FindStringSubmatch(text); len(match) == 2 {
		years := 0
		_, _ = fmt.Sscanf(match[1], "%d", &years)
		fields.YearsExperience = years
	}

	if fields.Name == "" {
		return domain.ResumeFields{}, fmt.Errorf("could not locate a candidate name in %s", fileName)
	}

	fields.Summary = fmt.Sprintf("%s, %d listed skills", fields.Name, len(fields.Skills))
	return fields, nil
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && len(trimmed) <= 80 {
			return trimmed
		}
	}
	return ""
}
