// Package chunk turns an employee record into the flat, single-line text
// chunks that the retrieval stage embeds and ranks.
package chunk

import (
	"fmt"
	"strings"

	"prosterio-go/internal/types"
)

// Type is the kind of section a chunk was built from.
type Type string

const (
	TypeInformation            Type = "INFORMATION"
	TypeSkills                 Type = "SKILLS"
	TypeProfessionalExperience Type = "PROFESSIONAL_EXPERIENCE"
	TypeEducation              Type = "EDUCATION"
	TypePublication            Type = "PUBLICATION"
	TypeDistinction            Type = "DISTINCTION"
	TypeCertifications         Type = "CERTIFICATIONS"
)

const notAvailable = "N/A"

// Chunk is one compiled piece of an employee record.
type Chunk struct {
	EmployeeID uint64
	UserID     uint64
	Type       Type
	Text       string
}

// Compile builds the ordered chunk set for rec. The output depends only on
// its inputs: INFORMATION first, then SKILLS, experiences, educations,
// publications, distinctions and CERTIFICATIONS, each in input order.
func Compile(rec types.EmployeeRecord, employeeID, userID uint64) []Chunk {
	fullName := CollapseNewlines(orNA(rec.FullName))
	chunks := make([]Chunk, 0, 3+len(rec.ProfessionalExperiences)+len(rec.Educations)+
		len(rec.Publications)+len(rec.Distinctions))

	add := func(t Type, body string) {
		chunks = append(chunks, Chunk{
			EmployeeID: employeeID,
			UserID:     userID,
			Type:       t,
			Text:       fmt.Sprintf("%s of %s: %s", t, fullName, CollapseNewlines(body)),
		})
	}

	info := fmt.Sprintf("Full Name: %s\nEmail: %s\nJob Title: %s", fullName, orNA(rec.Email), orNA(rec.JobTitle))
	if rec.PromotionYears != nil {
		info += fmt.Sprintf("\nPromotion Year(s): %d", int(*rec.PromotionYears))
	}
	if profile := rec.ProfileText(); profile != "" {
		info += "\nProfile Summary: " + profile
	}
	add(TypeInformation, info)

	if len(rec.Skills) > 0 {
		add(TypeSkills, strings.Join(rec.Skills, ","))
	}

	for _, exp := range rec.ProfessionalExperiences {
		add(TypeProfessionalExperience, fmt.Sprintf("Working at %s as %s in %s. %s",
			ptrOrNA(exp.Company), ptrOrNA(exp.JobTitle), ptrOrNA(exp.Location),
			exp.Description.Join(". ")))
	}

	for _, edu := range rec.Educations {
		add(TypeEducation, fmt.Sprintf("Learned %s at %s from %s to %s with a score of %s. %s",
			ptrOrNA(edu.Title), ptrOrNA(edu.Institution),
			orNA(edu.DateStart.String()), orNA(edu.DateEnd.String()), orNA(edu.Score.String()),
			edu.Description.Join(". ")))
	}

	for _, pub := range rec.Publications {
		add(TypePublication, fmt.Sprintf("Published in %s in %s.",
			ptrOrNA(pub.Publication), orNA(pub.Date.String())))
	}

	for _, dist := range rec.Distinctions {
		add(TypeDistinction, fmt.Sprintf("Notable %s: %s", ptrOrNA(dist.Name), dist.Description.Join(". ")))
	}

	if len(rec.Certifications) > 0 {
		add(TypeCertifications, strings.Join(rec.Certifications, " | "))
	}

	return chunks
}

// CollapseNewlines replaces every line break with ". " and trims the result.
// Applying it twice gives the same string as applying it once.
func CollapseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.TrimSpace(strings.ReplaceAll(s, "\n", ". "))
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return notAvailable
	}
	return s
}

func ptrOrNA(s *string) string {
	if s == nil {
		return notAvailable
	}
	return orNA(*s)
}
