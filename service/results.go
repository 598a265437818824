package service

import (
	"math"
	"sort"
	"time"

	"pickit-backend/models"
)

// Aggregate 由分组计数得到完整结果。每个选项都有一项，没有票的计 0
func Aggregate(poll *models.Poll, counts []models.OptionCount, participants int64, now time.Time) *models.PollResults {
	options := make([]models.OptionResult, len(poll.Options))
	for i, label := range poll.Options {
		options[i] = models.OptionResult{Index: i, Label: label}
	}

	var total, max int64
	for _, c := range counts {
		if !poll.HasOption(c.OptionIndex) {
			continue
		}
		options[c.OptionIndex].Count += c.VoteCount
	}
	for _, o := range options {
		total += o.Count
		if o.Count > max {
			max = o.Count
		}
	}

	leading := []int{}
	for i := range options {
		options[i].Percentage = percentage(options[i].Count, total)
		if max > 0 && options[i].Count == max {
			options[i].Leading = true
			leading = append(leading, i)
		}
	}

	return &models.PollResults{
		PollID:            poll.ID,
		Question:          poll.Question,
		AllowMultiple:     poll.AllowMultiple,
		IsAnonymous:       poll.IsAnonymous,
		IsExpired:         poll.IsExpired(now),
		ExpiresAt:         poll.ExpiresAt,
		Options:           options,
		TotalSelections:   total,
		TotalParticipants: participants,
		Leading:           leading,
		ComputedAt:        now,
	}
}

// percentage 保留一位小数，总数为 0 时为 0
func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(count)*1000/float64(total)) / 10
}

// GroupVoters 按提交的名字分组，名字顺序为首次投票顺序
func GroupVoters(poll *models.Poll, votes []models.Vote) []models.VoterEntry {
	entries := []models.VoterEntry{}
	position := make(map[string]int)
	chosen := make(map[string]map[int]bool)

	for _, v := range votes {
		if v.VoterName == nil || !poll.HasOption(v.OptionIndex) {
			continue
		}
		name := *v.VoterName
		if _, ok := position[name]; !ok {
			position[name] = len(entries)
			entries = append(entries, models.VoterEntry{VoterName: name})
			chosen[name] = make(map[int]bool)
		}
		chosen[name][v.OptionIndex] = true
	}

	for i := range entries {
		indices := make([]int, 0, len(chosen[entries[i].VoterName]))
		for idx := range chosen[entries[i].VoterName] {
			indices = append(indices, idx)
		}
		sort.Ints(indices)

		labels := make([]string, len(indices))
		for j, idx := range indices {
			labels[j] = poll.Options[idx]
		}
		entries[i].Options = indices
		entries[i].Labels = labels
	}
	return entries
}
