package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence"
	"github.com/convobot/convo/util"
	rd "github.com/go-redis/redis/v9"
	"go.uber.org/zap"
)

const SESSION_KEY string = "SESSION"

// Every save extends the session's life, not just the first one.
const sessionTTL = 24 * time.Hour

// Conditional upsert: write only when the stored sequence still matches
// the caller's copy, so a stale concurrent turn cannot overwrite a newer
// one. An absent key accepts any write.
var saveScript = rd.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  local obj = cjson.decode(cur)
  if obj['sequence'] ~= tonumber(ARGV[1]) then
    return 0
  end
end
redis.call('SET', KEYS[1], ARGV[2], 'EX', tonumber(ARGV[3]))
return 1
`)

var _ persistence.SessionStorage = new(redisSessionStorage)

type redisSessionStorage struct {
	*baseDao
	encDec util.EncoderDecoder[model.ExecutionContext]
}

func NewRedisSessionStorage(conf Config) *redisSessionStorage {
	return &redisSessionStorage{
		baseDao: newBaseDao(conf),
		encDec:  util.NewJsonEncoderDecoder[model.ExecutionContext](),
	}
}

func (rs *redisSessionStorage) Load(conversationId string) (*model.ExecutionContext, error) {
	ctx := context.Background()
	key := rs.getNamespaceKey(SESSION_KEY, conversationId)
	val, err := rs.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, nil
		}
		logger.Error("error in loading session", zap.String("conversationId", conversationId), zap.Error(err))
		return nil, persistence.StorageLayerError{}
	}
	sctx, err := rs.encDec.Decode([]byte(val))
	if err != nil {
		// malformed sessions are treated as absent, never surfaced
		logger.Warn("discarding malformed session", zap.String("conversationId", conversationId), zap.Error(err))
		return nil, nil
	}
	return sctx, nil
}

func (rs *redisSessionStorage) Save(sctx *model.ExecutionContext) error {
	ctx := context.Background()
	key := rs.getNamespaceKey(SESSION_KEY, sctx.ConversationId)
	expected := sctx.Sequence
	sctx.Sequence++
	data, err := rs.encDec.Encode(*sctx)
	if err != nil {
		sctx.Sequence = expected
		return err
	}
	res, err := saveScript.Run(ctx, rs.redisClient, []string{key},
		strconv.FormatInt(expected, 10), string(data), int(sessionTTL.Seconds())).Int()
	if err != nil {
		sctx.Sequence = expected
		logger.Error("error in saving session", zap.String("conversationId", sctx.ConversationId), zap.Error(err))
		return persistence.StorageLayerError{}
	}
	if res == 0 {
		sctx.Sequence = expected
		return persistence.SessionConflictError{ConversationId: sctx.ConversationId}
	}
	return nil
}

func (rs *redisSessionStorage) Clear(conversationId string) error {
	ctx := context.Background()
	key := rs.getNamespaceKey(SESSION_KEY, conversationId)
	sctx, err := rs.Load(conversationId)
	if err != nil {
		return err
	}
	if sctx != nil {
		// tombstone before delete, for future audit hooks on completed
		// sessions
		sctx.Status = model.SESSION_COMPLETED
		if data, err := rs.encDec.Encode(*sctx); err == nil {
			rs.redisClient.Set(ctx, key, data, time.Minute)
		}
	}
	if err := rs.redisClient.Del(ctx, key).Err(); err != nil {
		logger.Error("error in clearing session", zap.String("conversationId", conversationId), zap.Error(err))
		return persistence.StorageLayerError{}
	}
	return nil
}
