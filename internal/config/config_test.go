package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDatabaseConfigDSN(t *testing.T) {
	c := DatabaseConfig{
		Host:     "db.ngbank.internal",
		Port:     5432,
		User:     "aml_svc",
		Password: "secret",
		DBName:   "aml_compliance",
		SSLMode:  "require",
	}

	assert.Equal(t, "host=db.ngbank.internal port=5432 user=aml_svc password=secret dbname=aml_compliance sslmode=require", c.DSN())
}

func TestRedisConfigAddr(t *testing.T) {
	c := RedisConfig{Host: "redis.ngbank.internal", Port: 6379}
	assert.Equal(t, "redis.ngbank.internal:6379", c.Addr())
}
