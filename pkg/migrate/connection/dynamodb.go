package connection

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/baderkha/table-transfer/pkg/migrate/config/storecfg"
	"github.com/rs/zerolog"
)

// DialDynamoDB : client for the configured region, endpoint and profile.
// endpoint is meant for dynamodb-local and other compatible servers
func DialDynamoDB(cfg *storecfg.DynamoDB, logger zerolog.Logger) (*dynamodb.DynamoDB, error) {
	logger.Debug().Msg("getting DialDynamoDB session")
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		Profile:           cfg.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("DYNAMODB : Could not create aws session due to : %w", err)
	}
	logger.Debug().Str("region", aws.StringValue(sess.Config.Region)).Msg("got DialDynamoDB session")
	return dynamodb.New(sess), nil
}
