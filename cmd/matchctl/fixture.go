package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/tutor-match-api/internal/models"
)

// snapshotFile is the on-disk shape accepted by import and score.
type snapshotFile struct {
	Tutors   []models.TutorCandidate `yaml:"tutors"`
	Bookings []models.Booking        `yaml:"bookings"`
	Request  *models.StudentRequest  `yaml:"request"`
}

func loadSnapshot(path string) (*snapshotFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var snapshot snapshotFile
	if err := yaml.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range snapshot.Tutors {
		if strings.TrimSpace(snapshot.Tutors[i].ID) == "" {
			return nil, fmt.Errorf("tutor %d has no id", i)
		}
	}
	for i := range snapshot.Bookings {
		b := &snapshot.Bookings[i]
		if strings.TrimSpace(b.ID) == "" {
			return nil, fmt.Errorf("booking %d has no id", i)
		}
		status, ok := models.ParseBookingStatus(string(b.Status))
		if !ok {
			return nil, fmt.Errorf("booking %s has unknown status %q", b.ID, b.Status)
		}
		b.Status = status
		b.Start = b.Start.UTC()
		b.End = b.End.UTC()
	}
	if snapshot.Request != nil {
		snapshot.Request.Course = strings.ToUpper(strings.TrimSpace(snapshot.Request.Course))
	}
	return &snapshot, nil
}
