package migrations

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"pickit-backend/models"
)

// uniqueIndexes 投票去重依赖的唯一索引，缺失时补建
var uniqueIndexes = []struct {
	model interface{}
	name  string
}{
	{&models.Ballot{}, "idx_ballots_poll_voter"},
	{&models.Vote{}, "idx_votes_poll_voter_option"},
}

// Apply 建表并确认唯一约束存在
func Apply(db *gorm.DB) error {
	log.Info().Msg("执行迁移: polls / ballots / votes")
	if err := db.AutoMigrate(&models.Poll{}, &models.Ballot{}, &models.Vote{}); err != nil {
		return fmt.Errorf("迁移模型失败: %w", err)
	}

	for _, idx := range uniqueIndexes {
		if err := ensureIndex(db, idx.model, idx.name); err != nil {
			return err
		}
	}
	return nil
}

func ensureIndex(db *gorm.DB, model interface{}, name string) error {
	migrator := db.Migrator()
	if migrator.HasIndex(model, name) {
		log.Debug().Str("index", name).Msg("迁移跳过: 索引已存在")
		return nil
	}
	if err := migrator.CreateIndex(model, name); err != nil {
		log.Error().Err(err).Str("index", name).Msg("迁移失败")
		return fmt.Errorf("创建索引 %s 失败: %w", name, err)
	}
	log.Info().Str("index", name).Msg("迁移成功: 已创建索引")
	return nil
}
