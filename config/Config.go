package config

import "github.com/convobot/convo/ai"

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig   RedisStorageConfig
	HttpPort      int
	StorageType   StorageType
	AIConfig      ai.Config
	AnalyticsFile string
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
	PoolSize  int
	Password  string
}
