package app

import (
	"encoding/csv"
	"io"
	"strconv"

	"bookery/pkg/domain"
)

// utf8BOM makes spreadsheet applications detect the export encoding.
const utf8BOM = "\xef\xbb\xbf"

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportVisitsCSV writes the raw visit log as CSV.
func (a *App) ExportVisitsCSV(user *domain.User, w io.Writer) error {
	if err := authorize(user, domain.ActionViewStats); err != nil {
		return err
	}
	visits, err := a.store.ListVisits()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Visit ID", "User", "Book ID", "Visit Time"}); err != nil {
		return err
	}
	for _, v := range visits {
		viewer := "anonymous"
		if v.UserID != nil {
			viewer = strconv.FormatUint(uint64(*v.UserID), 10)
		}
		record := []string{
			strconv.FormatUint(uint64(v.ID), 10),
			viewer,
			strconv.FormatUint(uint64(v.BookID), 10),
			v.VisitTime.UTC().Format(exportTimeLayout),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportBookStatsCSV writes all-time view counts per book as CSV, including
// books never visited.
func (a *App) ExportBookStatsCSV(user *domain.User, w io.Writer) error {
	if err := authorize(user, domain.ActionViewStats); err != nil {
		return err
	}
	stats, err := a.store.BookViewCounts()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Book ID", "Title", "View Count"}); err != nil {
		return err
	}
	for _, s := range stats {
		record := []string{
			strconv.FormatUint(uint64(s.BookID), 10),
			s.Title,
			strconv.FormatInt(s.VisitCount, 10),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
