package analytics

import (
	"os"

	"github.com/convobot/convo/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FlowRunCollector appends one JSON record per finished flow run to a
// file, feeding the reporting pipeline. A nil collector is a no-op so the
// engine never has to branch on whether analytics is configured.
type FlowRunCollector struct {
	fileName string
	logger   *zap.Logger
}

func NewFlowRunCollector(fileName string) (*FlowRunCollector, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.StacktraceKey = ""
	fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
	logFile, err := os.OpenFile(fileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	writer := zapcore.AddSync(logFile)
	core := zapcore.NewTee(zapcore.NewCore(fileEncoder, writer, zapcore.InfoLevel))
	return &FlowRunCollector{
		fileName: fileName,
		logger:   zap.New(core),
	}, nil
}

func (c *FlowRunCollector) RecordRun(sctx *model.ExecutionContext, flow *model.Flow, success bool, handoff bool) {
	if c == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	if handoff {
		outcome = "handoff"
	}
	c.logger.Info(outcome,
		zap.String("workspaceId", sctx.WorkspaceId),
		zap.String("botId", sctx.BotId),
		zap.String("flowId", flow.Id),
		zap.String("flowName", flow.Name),
		zap.String("conversationId", sctx.ConversationId),
		zap.Int("turns", len(sctx.History)),
		zap.Time("startedAt", sctx.StartedAt))
}
