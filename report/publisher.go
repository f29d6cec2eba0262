package report

import (
	"FeatureBench/logger"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const TimeOutSeconds = 5

type PublishResponse struct {
	ID       string `json:"id"`
	Accepted int    `json:"accepted"`
}

// Publisher POSTs finished documents as JSON to a collector.
type Publisher struct {
	client *resty.Client
	url    string
}

func NewPublisher(url string) *Publisher {
	return &Publisher{
		client: resty.New().SetTimeout(TimeOutSeconds * time.Second),
		url:    url,
	}
}

func (p *Publisher) Write(ctx context.Context, doc Document) error {
	var respBody PublishResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(doc).
		SetResult(&respBody).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("publish: collector returned %s: %s", resp.Status(), resp.String())
	}
	logger.Log().Info("Report published", zap.String("url", p.url), zap.String("id", respBody.ID),
		zap.Int("accepted", respBody.Accepted))
	return nil
}
