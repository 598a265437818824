package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickit-backend/auth"
	"pickit-backend/identity"
	"pickit-backend/models"
	"pickit-backend/service"
)

// CreatePollRequest 创建投票请求
type CreatePollRequest struct {
	Question      string     `json:"question"`
	Options       []string   `json:"options" binding:"required"`
	AllowMultiple bool       `json:"allow_multiple"`
	IsAnonymous   *bool      `json:"is_anonymous"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

// UpdatePollRequest 只能修改问题
type UpdatePollRequest struct {
	Question string `json:"question"`
}

// VoteRequest 投票请求，单选时只传一个下标
type VoteRequest struct {
	OptionIndices []int  `json:"option_indices"`
	VoterName     string `json:"voter_name"`
}

// VoteStatusResponse 当前身份是否已投票
type VoteStatusResponse struct {
	HasVoted bool `json:"has_voted"`
}

// PollController 处理投票相关API请求
type PollController struct {
	pollService service.PollService
	resolver    *identity.Resolver
}

// NewPollController 创建投票控制器
func NewPollController(pollService service.PollService, resolver *identity.Resolver) *PollController {
	return &PollController{
		pollService: pollService,
		resolver:    resolver,
	}
}

// RegisterRoutes 注册API路由，voteLimit 只作用于投票提交
func (pc *PollController) RegisterRoutes(api *gin.RouterGroup, voteLimit gin.HandlerFunc) {
	polls := api.Group("/polls")
	{
		// 投票活动管理
		polls.POST("", auth.RequireAccount(), pc.CreatePoll)
		polls.GET("/:id", pc.GetPoll)
		polls.PUT("/:id", auth.RequireAccount(), pc.UpdatePoll)
		polls.DELETE("/:id", auth.RequireAccount(), pc.DeletePoll)

		// 投票操作
		polls.POST("/:id/vote", voteLimit, pc.Vote)
		polls.GET("/:id/vote-status", pc.VoteStatus)
		polls.GET("/:id/results", pc.GetResults)
		polls.GET("/:id/voters", pc.GetVoters)
	}

	me := api.Group("/me")
	{
		me.GET("/polls", auth.RequireAccount(), pc.ListOwnedPolls)
		me.GET("/votes", pc.ListVotedPolls)
	}
}

// CreatePoll 创建投票活动
func (pc *PollController) CreatePoll(c *gin.Context) {
	var req CreatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	poll, err := pc.pollService.CreatePoll(c.Request.Context(), auth.CurrentAccount(c), service.CreatePollInput{
		Question:      req.Question,
		Options:       req.Options,
		AllowMultiple: req.AllowMultiple,
		IsAnonymous:   req.IsAnonymous,
		ExpiresAt:     req.ExpiresAt,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

// GetPoll 获取投票活动详情
func (pc *PollController) GetPoll(c *gin.Context) {
	poll, err := pc.pollService.GetPoll(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

// UpdatePoll 修改投票问题
func (pc *PollController) UpdatePoll(c *gin.Context) {
	var req UpdatePollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	poll, err := pc.pollService.UpdateQuestion(c.Request.Context(), auth.CurrentAccount(c), c.Param("id"), req.Question)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

// DeletePoll 删除投票活动
func (pc *PollController) DeletePoll(c *gin.Context) {
	if err := pc.pollService.DeletePoll(c.Request.Context(), auth.CurrentAccount(c), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Success: true, Message: "poll deleted"})
}

// Vote 提交投票，匿名访客第一次投票时会下发 voter cookie
func (pc *PollController) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	voter, err := pc.resolver.Resolve(c)
	if err != nil {
		RespondError(c, service.ErrInvalidVoter)
		return
	}

	err = pc.pollService.SubmitVote(c.Request.Context(), service.SubmitVoteInput{
		PollID:        c.Param("id"),
		Voter:         voter,
		OptionIndices: req.OptionIndices,
		VoterName:     req.VoterName,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, SuccessResponse{Success: true, Message: "vote recorded"})
}

// VoteStatus 没有身份的访客视为未投票
func (pc *PollController) VoteStatus(c *gin.Context) {
	voter, ok := pc.resolver.Peek(c)
	if !ok {
		if _, err := pc.pollService.GetPoll(c.Request.Context(), c.Param("id")); err != nil {
			RespondError(c, err)
			return
		}
		c.JSON(http.StatusOK, VoteStatusResponse{})
		return
	}

	voted, err := pc.pollService.HasVoted(c.Request.Context(), c.Param("id"), voter)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, VoteStatusResponse{HasVoted: voted})
}

// GetResults 获取投票统计结果
func (pc *PollController) GetResults(c *gin.Context) {
	var viewer *models.VoterRef
	if voter, ok := pc.resolver.Peek(c); ok {
		viewer = &voter
	}

	results, err := pc.pollService.GetResults(c.Request.Context(), c.Param("id"), viewer)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// GetVoters 实名投票的投票人名单
func (pc *PollController) GetVoters(c *gin.Context) {
	voters, err := pc.pollService.GetVoters(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, voters)
}

// ListOwnedPolls 我创建的投票
func (pc *PollController) ListOwnedPolls(c *gin.Context) {
	polls, err := pc.pollService.ListOwnedPolls(c.Request.Context(), auth.CurrentAccount(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, polls)
}

// ListVotedPolls 我参与过的投票
func (pc *PollController) ListVotedPolls(c *gin.Context) {
	voter, ok := pc.resolver.Peek(c)
	if !ok {
		c.JSON(http.StatusOK, []models.VotedPoll{})
		return
	}

	polls, err := pc.pollService.ListVotedPolls(c.Request.Context(), voter)
	if err != nil {
		RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, polls)
}
