package queue

import "github.com/redis/go-redis/v9"

// enqueueScript stores a new job body and queues its id in one step. An
// existing body is left alone and 0 is returned.
// KEYS[1]=job KEYS[2]=wait KEYS[3]=delayed ARGV[1]=id ARGV[2]=job_json ARGV[3]=ready_ms (0 = now)
var enqueueScript = redis.NewScript(`
if redis.call("SETNX", KEYS[1], ARGV[2]) == 0 then
  return 0
end
local ready = tonumber(ARGV[3])
if ready > 0 then
  redis.call("ZADD", KEYS[3], ready, ARGV[1])
else
  redis.call("LPUSH", KEYS[2], ARGV[1])
end
return 1
`)

// reserveScript moves the oldest waiting id to active and records its lease.
// KEYS[1]=wait KEYS[2]=active KEYS[3]=leases ARGV[1]=now_ms
var reserveScript = redis.NewScript(`
local id = redis.call("RPOPLPUSH", KEYS[1], KEYS[2])
if not id then
  return false
end
redis.call("ZADD", KEYS[3], ARGV[1], id)
return id
`)

// promoteScript moves due delayed jobs to the wait list.
// KEYS[1]=delayed KEYS[2]=wait ARGV[1]=now_ms ARGV[2]=batch
var promoteScript = redis.NewScript(`
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call("ZREM", KEYS[1], id)
  redis.call("LPUSH", KEYS[2], id)
end
return #ids
`)

// finishScript removes a job from active and files it under a bounded history list.
// keep < 0 retains everything; keep == 0 deletes the job outright.
// KEYS[1]=active KEYS[2]=history KEYS[3]=leases ARGV[1]=id ARGV[2]=keep ARGV[3]=job_key_prefix ARGV[4]=job_json
var finishScript = redis.NewScript(`
redis.call("LREM", KEYS[1], 1, ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
local keep = tonumber(ARGV[2])
if keep == 0 then
  redis.call("DEL", ARGV[3] .. ARGV[1])
  return 0
end
redis.call("SET", ARGV[3] .. ARGV[1], ARGV[4])
redis.call("LPUSH", KEYS[2], ARGV[1])
local trimmed = 0
if keep > 0 then
  while redis.call("LLEN", KEYS[2]) > keep do
    local old = redis.call("RPOP", KEYS[2])
    redis.call("DEL", ARGV[3] .. old)
    trimmed = trimmed + 1
  end
end
return trimmed
`)

// retryScript moves a job from active back to delayed.
// KEYS[1]=active KEYS[2]=delayed KEYS[3]=job KEYS[4]=leases ARGV[1]=id ARGV[2]=ready_ms ARGV[3]=job_json
var retryScript = redis.NewScript(`
redis.call("LREM", KEYS[1], 1, ARGV[1])
redis.call("ZREM", KEYS[4], ARGV[1])
redis.call("SET", KEYS[3], ARGV[3])
redis.call("ZADD", KEYS[2], ARGV[2], ARGV[1])
return 1
`)
