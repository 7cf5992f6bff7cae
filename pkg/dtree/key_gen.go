package dtree

import (
	"hash/adler32"
	"os"

	"github.com/bwmarrin/snowflake"
)

var globalIdGenerator *snowflake.Node = nil

func (engine *Engine) generateKey() int64 {
	return engine.snowflake.Generate().Int64()
}

func getGlobalSnowflakeIdGenerator() *snowflake.Node {
	if globalIdGenerator == nil {
		globalIdGenerator = CreateSnowflakeIdGenerator()
	}
	return globalIdGenerator
}

// CreateSnowflakeIdGenerator builds an ID generator seeded from the hostname,
// so two instances on the same host share a node id while instances on
// different hosts usually do not collide.
func CreateSnowflakeIdGenerator() *snowflake.Node {
	host, _ := os.Hostname()
	seed := int64(adler32.Checksum([]byte(host))) % (1 << snowflake.NodeBits)
	snowflakeNode, err := snowflake.NewNode(seed)
	if err != nil {
		panic("can't initialize snowflake ID generator. Message: " + err.Error())
	}
	return snowflakeNode
}
