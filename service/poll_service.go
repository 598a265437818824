package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"pickit-backend/metrics"
	"pickit-backend/models"
	"pickit-backend/mq"
	"pickit-backend/repository"
)

// PollService 投票服务接口
type PollService interface {
	// 投票管理
	CreatePoll(ctx context.Context, owner *models.Account, input CreatePollInput) (*models.Poll, error)
	GetPoll(ctx context.Context, id string) (*models.Poll, error)
	UpdateQuestion(ctx context.Context, actor *models.Account, id, question string) (*models.Poll, error)
	DeletePoll(ctx context.Context, actor *models.Account, id string) error
	ListOwnedPolls(ctx context.Context, actor *models.Account) ([]models.Poll, error)
	ListVotedPolls(ctx context.Context, voter models.VoterRef) ([]models.VotedPoll, error)

	// 投票操作
	SubmitVote(ctx context.Context, input SubmitVoteInput) error
	HasVoted(ctx context.Context, pollID string, voter models.VoterRef) (bool, error)

	// 结果统计
	GetResults(ctx context.Context, pollID string, viewer *models.VoterRef) (*models.PollResults, error)
	GetVoters(ctx context.Context, pollID string) ([]models.VoterEntry, error)
}

// CreatePollInput 创建投票的参数
type CreatePollInput struct {
	Question      string
	Options       []string
	AllowMultiple bool
	// IsAnonymous 为空时默认匿名
	IsAnonymous *bool
	ExpiresAt   *time.Time
}

// SubmitVoteInput 提交投票的参数
type SubmitVoteInput struct {
	PollID        string
	Voter         models.VoterRef
	OptionIndices []int
	VoterName     string
}

// Options 服务参数
type Options struct {
	DefaultPollDuration time.Duration
	VoteTimeout         time.Duration
	Now                 func() time.Time
}

// PollServiceImpl 投票服务实现
type PollServiceImpl struct {
	polls     repository.PollRepository
	votes     repository.VoteRepository
	publisher mq.Publisher
	opts      Options
}

// NewPollService 创建投票服务
func NewPollService(polls repository.PollRepository, votes repository.VoteRepository, publisher mq.Publisher, opts Options) *PollServiceImpl {
	if opts.DefaultPollDuration <= 0 {
		opts.DefaultPollDuration = 7 * 24 * time.Hour
	}
	if opts.VoteTimeout <= 0 {
		opts.VoteTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &PollServiceImpl{
		polls:     polls,
		votes:     votes,
		publisher: publisher,
		opts:      opts,
	}
}

func (s *PollServiceImpl) now() time.Time {
	return s.opts.Now().UTC()
}

// CreatePoll 创建投票活动
func (s *PollServiceImpl) CreatePoll(ctx context.Context, owner *models.Account, input CreatePollInput) (*models.Poll, error) {
	if owner == nil || owner.ID == "" {
		return nil, ErrUnauthenticated
	}

	question, err := validateQuestion(input.Question)
	if err != nil {
		return nil, err
	}
	options, err := validateOptions(input.Options)
	if err != nil {
		return nil, err
	}

	now := s.now()
	expiresAt := now.Add(s.opts.DefaultPollDuration)
	custom := input.ExpiresAt != nil
	if custom {
		expiresAt = input.ExpiresAt.UTC()
		if !expiresAt.After(now) {
			return nil, ErrExpiryInPast
		}
	}

	anonymous := true
	if input.IsAnonymous != nil {
		anonymous = *input.IsAnonymous
	}

	ownerID := owner.ID
	poll := &models.Poll{
		ID:              uuid.NewString(),
		Question:        question,
		Options:         options,
		AllowMultiple:   input.AllowMultiple,
		IsAnonymous:     anonymous,
		CustomExpiresAt: custom,
		OwnerID:         &ownerID,
		CreatedAt:       now,
		ExpiresAt:       expiresAt,
	}

	if err := s.polls.CreatePoll(ctx, poll); err != nil {
		return nil, transient(err)
	}

	log.Info().Str("poll_id", poll.ID).Str("owner", ownerID).Int("options", len(options)).Msg("投票已创建")
	return poll, nil
}

// GetPoll 获取投票活动详情
func (s *PollServiceImpl) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	poll, err := s.loadPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	polls := []models.Poll{*poll}
	if err := s.fillTotals(ctx, polls); err != nil {
		return nil, err
	}
	return &polls[0], nil
}

// UpdateQuestion 只允许创建者修改问题，选项不可变
func (s *PollServiceImpl) UpdateQuestion(ctx context.Context, actor *models.Account, id, question string) (*models.Poll, error) {
	if actor == nil || actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	poll, err := s.loadPoll(ctx, id)
	if err != nil {
		return nil, err
	}
	if !poll.IsOwnedBy(actor.ID) {
		return nil, ErrForbidden
	}

	question, err = validateQuestion(question)
	if err != nil {
		return nil, err
	}
	if err := s.polls.UpdateQuestion(ctx, id, question); err != nil {
		if errors.Is(err, repository.ErrPollNotFound) {
			return nil, ErrPollNotFound
		}
		return nil, transient(err)
	}

	return s.GetPoll(ctx, id)
}

// DeletePoll 删除投票及其全部选票
func (s *PollServiceImpl) DeletePoll(ctx context.Context, actor *models.Account, id string) error {
	if actor == nil || actor.ID == "" {
		return ErrUnauthenticated
	}
	poll, err := s.loadPoll(ctx, id)
	if err != nil {
		return err
	}
	if !poll.IsOwnedBy(actor.ID) {
		return ErrForbidden
	}

	if err := s.polls.DeletePoll(ctx, id); err != nil {
		if errors.Is(err, repository.ErrPollNotFound) {
			return ErrPollNotFound
		}
		return transient(err)
	}

	log.Info().Str("poll_id", id).Str("actor", actor.ID).Msg("投票已删除")
	return nil
}

// ListOwnedPolls 当前账号创建的投票，最新的在前
func (s *PollServiceImpl) ListOwnedPolls(ctx context.Context, actor *models.Account) ([]models.Poll, error) {
	if actor == nil || actor.ID == "" {
		return nil, ErrUnauthenticated
	}
	polls, err := s.polls.ListPollsByOwner(ctx, actor.ID)
	if err != nil {
		return nil, transient(err)
	}
	if err := s.fillTotals(ctx, polls); err != nil {
		return nil, err
	}
	return polls, nil
}

// ListVotedPolls 投票者参与过的投票，最近参与的在前
func (s *PollServiceImpl) ListVotedPolls(ctx context.Context, voter models.VoterRef) ([]models.VotedPoll, error) {
	if !voter.Valid() {
		return nil, ErrInvalidVoter
	}
	voted, err := s.votes.ListVotedPolls(ctx, voter.Key())
	if err != nil {
		return nil, transient(err)
	}

	ids := make([]string, len(voted))
	for i := range voted {
		ids[i] = voted[i].ID
	}
	totals, err := s.votes.CountParticipants(ctx, ids...)
	if err != nil {
		return nil, transient(err)
	}
	for i := range voted {
		voted[i].TotalVotes = totals[voted[i].ID]
	}
	return voted, nil
}

// SubmitVote 投票准入：依次检查投票状态、选项、署名、身份，最后由唯一约束裁决重复投票
func (s *PollServiceImpl) SubmitVote(ctx context.Context, input SubmitVoteInput) (err error) {
	defer func() {
		outcome := "accepted"
		if err != nil {
			outcome = string(KindOf(err))
		}
		metrics.VoteOutcomes.WithLabelValues(outcome).Inc()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.opts.VoteTimeout)
	defer cancel()

	poll, err := s.loadPoll(ctx, input.PollID)
	if err != nil {
		return err
	}
	if poll.IsExpired(s.now()) {
		return ErrPollClosed
	}

	indices, err := validateSelection(poll, input.OptionIndices)
	if err != nil {
		return err
	}
	name, err := validateVoterName(poll, input.VoterName)
	if err != nil {
		return err
	}
	if !input.Voter.Valid() {
		return ErrInvalidVoter
	}

	now := s.now()
	ballot := &models.Ballot{
		PollID:    poll.ID,
		VoterKey:  input.Voter.Key(),
		CreatedAt: now,
	}
	votes := make([]models.Vote, len(indices))
	for i, idx := range indices {
		votes[i] = models.Vote{
			PollID:      poll.ID,
			OptionIndex: idx,
			VoterName:   name,
			CreatedAt:   now,
		}
		input.Voter.Apply(&votes[i])
	}

	if err := s.votes.CreateBallot(ctx, ballot, votes); err != nil {
		if errors.Is(err, repository.ErrDuplicateBallot) {
			return ErrAlreadyVoted
		}
		return transient(err)
	}

	s.publish(ctx, mq.VoteEvent{PollID: poll.ID, OccurredAt: now})
	return nil
}

// publish 选票已提交，事件发送失败只记录日志
func (s *PollServiceImpl) publish(ctx context.Context, event mq.VoteEvent) {
	if s.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishVote(pubCtx, event); err != nil {
		log.Warn().Err(err).Str("poll_id", event.PollID).Msg("发布投票事件失败")
	}
}

// HasVoted 是否已有该投票者的选票
func (s *PollServiceImpl) HasVoted(ctx context.Context, pollID string, voter models.VoterRef) (bool, error) {
	if !voter.Valid() {
		return false, ErrInvalidVoter
	}
	if _, err := s.loadPoll(ctx, pollID); err != nil {
		return false, err
	}
	voted, err := s.votes.HasVoted(ctx, pollID, voter.Key())
	if err != nil {
		return false, transient(err)
	}
	return voted, nil
}

// GetResults 从全部选票重新聚合，不做增量
func (s *PollServiceImpl) GetResults(ctx context.Context, pollID string, viewer *models.VoterRef) (*models.PollResults, error) {
	poll, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}

	counts, err := s.votes.CountByOption(ctx, pollID)
	if err != nil {
		return nil, transient(err)
	}
	participants, err := s.votes.CountParticipants(ctx, pollID)
	if err != nil {
		return nil, transient(err)
	}

	results := Aggregate(poll, counts, participants[pollID], s.now())

	if viewer != nil && viewer.Valid() {
		selected, err := s.votes.SelectedOptions(ctx, pollID, viewer.Key())
		if err != nil {
			return nil, transient(err)
		}
		results.HasVoted = len(selected) > 0
		results.MySelections = selected
	}
	return results, nil
}

// GetVoters 实名投票的投票人名单，按名字原样分组
func (s *PollServiceImpl) GetVoters(ctx context.Context, pollID string) ([]models.VoterEntry, error) {
	poll, err := s.loadPoll(ctx, pollID)
	if err != nil {
		return nil, err
	}
	if poll.IsAnonymous {
		return []models.VoterEntry{}, nil
	}

	votes, err := s.votes.ListNamedVotes(ctx, pollID)
	if err != nil {
		return nil, transient(err)
	}
	return GroupVoters(poll, votes), nil
}

func (s *PollServiceImpl) loadPoll(ctx context.Context, id string) (*models.Poll, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrPollNotFound
	}
	poll, err := s.polls.GetPollByID(ctx, id)
	if errors.Is(err, repository.ErrPollNotFound) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, transient(err)
	}
	return poll, nil
}

func (s *PollServiceImpl) fillTotals(ctx context.Context, polls []models.Poll) error {
	if len(polls) == 0 {
		return nil
	}
	ids := make([]string, len(polls))
	for i := range polls {
		ids[i] = polls[i].ID
	}
	totals, err := s.votes.CountParticipants(ctx, ids...)
	if err != nil {
		return transient(err)
	}
	for i := range polls {
		polls[i].TotalVotes = totals[polls[i].ID]
	}
	return nil
}

func validateQuestion(question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if utf8.RuneCountInString(question) > models.MaxQuestionLength {
		return "", ErrQuestionTooLong
	}
	return question, nil
}

// validateOptions 去掉空白选项后再检查数量
func validateOptions(raw []string) ([]string, error) {
	options := make([]string, 0, len(raw))
	for _, o := range raw {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if utf8.RuneCountInString(o) > models.MaxOptionLength {
			return nil, ErrOptionTooLong
		}
		options = append(options, o)
	}
	if len(options) < models.MinOptions {
		return nil, ErrTooFewOptions
	}
	if len(options) > models.MaxOptions {
		return nil, ErrTooManyOptions
	}
	return options, nil
}

func validateSelection(poll *models.Poll, raw []int) ([]int, error) {
	if len(raw) == 0 {
		return nil, ErrInvalidOption
	}
	if !poll.AllowMultiple && len(raw) != 1 {
		return nil, ErrInvalidOption
	}

	seen := make(map[int]bool, len(raw))
	indices := make([]int, 0, len(raw))
	for _, idx := range raw {
		if !poll.HasOption(idx) || seen[idx] {
			return nil, ErrInvalidOption
		}
		seen[idx] = true
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	return indices, nil
}

// validateVoterName 匿名投票忽略署名
func validateVoterName(poll *models.Poll, raw string) (*string, error) {
	if poll.IsAnonymous {
		return nil, nil
	}
	name := strings.TrimSpace(raw)
	if name == "" {
		return nil, ErrMissingName
	}
	if utf8.RuneCountInString(name) > models.MaxVoterNameLen {
		return nil, ErrNameTooLong
	}
	return &name, nil
}
