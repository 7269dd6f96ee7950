package redis

import (
	"context"
	"errors"

	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence"
	"github.com/convobot/convo/util"
	rd "github.com/go-redis/redis/v9"
	"go.uber.org/zap"
)

const FLOW_KEY string = "FLOW"
const BOT_FLOWS_KEY string = "BOTFLOWS"
const VERSIONS_KEY string = "VERSIONS"
const STATS_KEY string = "STATS"

var _ persistence.FlowStorage = new(redisFlowStorage)

type redisFlowStorage struct {
	*baseDao
	flowEncDec    util.EncoderDecoder[model.Flow]
	versionEncDec util.EncoderDecoder[model.FlowVersion]
}

func NewRedisFlowStorage(conf Config) *redisFlowStorage {
	return &redisFlowStorage{
		baseDao:       newBaseDao(conf),
		flowEncDec:    util.NewJsonEncoderDecoder[model.Flow](),
		versionEncDec: util.NewJsonEncoderDecoder[model.FlowVersion](),
	}
}

func (rf *redisFlowStorage) SaveFlow(flow model.Flow) error {
	ctx := context.Background()
	data, err := rf.flowEncDec.Encode(flow)
	if err != nil {
		return err
	}
	key := rf.getNamespaceKey(FLOW_KEY, flow.Id)
	indexKey := rf.getNamespaceKey(BOT_FLOWS_KEY, flow.WorkspaceId, flow.BotId)
	if err := rf.redisClient.Set(ctx, key, data, 0).Err(); err != nil {
		logger.Error("error in saving flow", zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{}
	}
	if err := rf.redisClient.SAdd(ctx, indexKey, flow.Id).Err(); err != nil {
		logger.Error("error in indexing flow", zap.String("flowId", flow.Id), zap.Error(err))
		return persistence.StorageLayerError{}
	}
	return nil
}

func (rf *redisFlowStorage) GetFlow(flowId string) (*model.Flow, error) {
	ctx := context.Background()
	key := rf.getNamespaceKey(FLOW_KEY, flowId)
	val, err := rf.redisClient.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "flow", Id: flowId}
		}
		logger.Error("error in getting flow", zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{}
	}
	flow, err := rf.flowEncDec.Decode([]byte(val))
	if err != nil {
		return nil, err
	}
	rf.attachStats(ctx, flow)
	return flow, nil
}

func (rf *redisFlowStorage) ListFlowsByBot(workspaceId string, botId string) ([]model.Flow, error) {
	ctx := context.Background()
	indexKey := rf.getNamespaceKey(BOT_FLOWS_KEY, workspaceId, botId)
	ids, err := rf.redisClient.SMembers(ctx, indexKey).Result()
	if err != nil {
		logger.Error("error in listing bot flows", zap.String("botId", botId), zap.Error(err))
		return nil, persistence.StorageLayerError{}
	}
	flows := make([]model.Flow, 0, len(ids))
	for _, id := range ids {
		flow, err := rf.GetFlow(id)
		if err != nil {
			// index can be ahead of a deleted flow record, skip
			continue
		}
		flows = append(flows, *flow)
	}
	return flows, nil
}

func (rf *redisFlowStorage) SaveVersion(version model.FlowVersion) error {
	ctx := context.Background()
	data, err := rf.versionEncDec.Encode(version)
	if err != nil {
		return err
	}
	key := rf.getNamespaceKey(VERSIONS_KEY, version.FlowId)
	if err := rf.redisClient.HSet(ctx, key, version.Id, string(data)).Err(); err != nil {
		logger.Error("error in saving flow version", zap.String("flowId", version.FlowId), zap.String("versionId", version.Id), zap.Error(err))
		return persistence.StorageLayerError{}
	}
	return nil
}

func (rf *redisFlowStorage) GetVersion(flowId string, versionId string) (*model.FlowVersion, error) {
	ctx := context.Background()
	key := rf.getNamespaceKey(VERSIONS_KEY, flowId)
	val, err := rf.redisClient.HGet(ctx, key, versionId).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, persistence.NotFoundError{Kind: "version", Id: versionId}
		}
		logger.Error("error in getting flow version", zap.String("flowId", flowId), zap.String("versionId", versionId), zap.Error(err))
		return nil, persistence.StorageLayerError{}
	}
	return rf.versionEncDec.Decode([]byte(val))
}

func (rf *redisFlowStorage) GetLatestVersion(flowId string) (*model.FlowVersion, error) {
	ctx := context.Background()
	key := rf.getNamespaceKey(VERSIONS_KEY, flowId)
	all, err := rf.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		logger.Error("error in getting flow versions", zap.String("flowId", flowId), zap.Error(err))
		return nil, persistence.StorageLayerError{}
	}
	var latest *model.FlowVersion
	for _, raw := range all {
		version, err := rf.versionEncDec.Decode([]byte(raw))
		if err != nil {
			continue
		}
		if latest == nil || version.Version > latest.Version {
			latest = version
		}
	}
	if latest == nil {
		return nil, persistence.NotFoundError{Kind: "version", Id: flowId}
	}
	return latest, nil
}

func (rf *redisFlowStorage) RecordRun(flowId string, success bool) error {
	ctx := context.Background()
	key := rf.getNamespaceKey(STATS_KEY, flowId)
	if err := rf.redisClient.HIncrBy(ctx, key, "runs", 1).Err(); err != nil {
		logger.Error("error in recording flow run", zap.String("flowId", flowId), zap.Error(err))
		return persistence.StorageLayerError{}
	}
	if success {
		if err := rf.redisClient.HIncrBy(ctx, key, "successes", 1).Err(); err != nil {
			logger.Error("error in recording flow success", zap.String("flowId", flowId), zap.Error(err))
			return persistence.StorageLayerError{}
		}
	}
	return nil
}

func (rf *redisFlowStorage) attachStats(ctx context.Context, flow *model.Flow) {
	key := rf.getNamespaceKey(STATS_KEY, flow.Id)
	stats, err := rf.redisClient.HGetAll(ctx, key).Result()
	if err != nil {
		return
	}
	flow.Runs = parseCounter(stats["runs"])
	flow.Successes = parseCounter(stats["successes"])
}
