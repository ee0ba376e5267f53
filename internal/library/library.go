// Package library lists the indexed chapters grouped by subject.
package library

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bull/curriculum-rag/internal/namespace"
	"github.com/bull/curriculum-rag/internal/storage"
)

// Chapter is one indexed source document.
type Chapter struct {
	Filename  string `json:"filename"`
	Grade     string `json:"grade"`
	Namespace string `json:"namespace"`
}

// Subject groups chapters indexed under one subject.
type Subject struct {
	Subject  string    `json:"subject"`
	Chapters []Chapter `json:"chapters"`
}

// Library is the full listing.
type Library struct {
	Subjects []Subject `json:"subjects"`
}

// List builds the library from the partitions in index. Namespaces follow the
// "Subject_Grade" layout; anything else is listed under the default namespace
// with an empty grade.
func List(ctx context.Context, index storage.Index) (*Library, error) {
	stats, err := index.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe index: %w", err)
	}

	namespaces := make([]string, 0, len(stats.Namespaces))
	for ns, count := range stats.Namespaces {
		if count > 0 {
			namespaces = append(namespaces, ns)
		}
	}
	sort.Strings(namespaces)

	bySubject := make(map[string][]Chapter)
	for _, ns := range namespaces {
		files, err := index.Sources(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("list sources of %s: %w", ns, err)
		}

		subject, grade := split(ns)
		for _, f := range files {
			bySubject[subject] = append(bySubject[subject], Chapter{
				Filename:  f,
				Grade:     grade,
				Namespace: ns,
			})
		}
	}

	lib := &Library{Subjects: make([]Subject, 0, len(bySubject))}
	for subject, chapters := range bySubject {
		sort.SliceStable(chapters, func(i, j int) bool {
			if chapters[i].Grade != chapters[j].Grade {
				return chapters[i].Grade < chapters[j].Grade
			}
			return chapters[i].Filename < chapters[j].Filename
		})
		lib.Subjects = append(lib.Subjects, Subject{Subject: subject, Chapters: chapters})
	}
	sort.Slice(lib.Subjects, func(i, j int) bool {
		return lib.Subjects[i].Subject < lib.Subjects[j].Subject
	})

	return lib, nil
}

// split recovers subject and grade from a partition key. Grades are class
// numbers, so the last underscore separates them from the subject.
func split(ns string) (subject, grade string) {
	i := strings.LastIndexByte(ns, '_')
	if ns == namespace.Default || i <= 0 || i == len(ns)-1 {
		return namespace.Default, ""
	}
	return strings.ReplaceAll(ns[:i], "_", " "), ns[i+1:]
}
