package stats

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

type StatsRenderer interface {
	RenderStats(stats DailyStats) (string, error)
}

type CsvStatsRendererImpl struct {
}

func NewCsvStatsRenderer() *CsvStatsRendererImpl {
	return &CsvStatsRendererImpl{}
}

func (t *CsvStatsRendererImpl) RenderStats(stats DailyStats) (string, error) {
	data := make([][]string, 0, len(stats.Rooms)+2)
	data = append(data, []string{stats.Date.String(), "Meetings", "Multi-room", "Booked"})
	for _, rs := range stats.Rooms {
		data = append(data, []string{rs.Room, strconv.Itoa(rs.Meetings), strconv.Itoa(rs.MultiRoom), durationToString(rs.Booked)})
	}
	data = append(data, []string{"Total", strconv.Itoa(stats.TotalMeetings), "", durationToString(stats.TotalBooked)})

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	for _, row := range data {
		err := writer.Write(row)
		if err != nil {
			log.Errorf("Error writing to csv: %v", err)
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}

	return b.String(), nil
}

func durationToString(duration time.Duration) string {
	hours := strconv.Itoa(int(duration.Hours()))
	if len(hours) == 1 {
		hours = "0" + hours
	}
	minutes := strconv.Itoa(int(duration.Minutes()) % 60)
	if len(minutes) == 1 {
		minutes = "0" + minutes
	}
	seconds := strconv.Itoa(int(duration.Seconds()) % 60)
	if len(seconds) == 1 {
		seconds = "0" + seconds
	}
	return hours + ":" + minutes + ":" + seconds
}
