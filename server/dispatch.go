package server

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/demos-voting/cryptoserver/audit"
	"github.com/demos-voting/cryptoserver/crypto"
	"github.com/demos-voting/cryptoserver/pool"
	"github.com/demos-voting/cryptoserver/protocol"
	"github.com/demos-voting/cryptoserver/replay"
	"github.com/rs/zerolog"
)

// connJob is the pool.ProducerTask for one accepted connection: it
// reads exactly one framed request, decodes it, and builds the
// ConsumerTask that will actually perform the cryptographic work and
// write the framed response. Grounded on
// original_source/demos-crypto/src/CryptoServer.cpp's ProducerTask,
// which plays the identical role (parse protobuf, build a
// ConsumerTask, push it).
type connJob struct {
	conn     net.Conn
	timeout  time.Duration
	metrics  *Metrics
	log      zerolog.Logger
	audit    *audit.Publisher // nil disables the audit stream
	registry *Registry
	replay   *replay.Guard
}

func (j *connJob) Produce(poolSize int) (pool.ConsumerTask, error) {
	raw, err := protocol.ReadFrame(j.conn, j.timeout)
	if err != nil {
		j.metrics.ConnectionErrs.Inc()
		j.conn.Close()
		return nil, err
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		j.metrics.ConnectionErrs.Inc()
		writeErrorResponse(j.conn, j.timeout, 0, err)
		j.conn.Close()
		return nil, err
	}
	j.log.Debug().Str("command", req.Command.String()).Msg("dispatching request")

	switch req.Command {
	case protocol.CmdKeyGen:
		return &keyGenTask{base: j.base(req.Command), req: req.KeyGen}, nil
	case protocol.CmdGenBallot:
		return newGenBallotTask(j.base(req.Command), req.GenBallot, poolSize), nil
	case protocol.CmdAddCom:
		return &addComTask{base: j.base(req.Command), req: req.AddCom}, nil
	case protocol.CmdAddDecom:
		return &addDecomTask{base: j.base(req.Command), req: req.AddDecom}, nil
	case protocol.CmdCompleteZK:
		return &completeZKTask{base: j.base(req.Command), req: req.CompleteZK}, nil
	case protocol.CmdVerifyCom:
		return &verifyComTask{base: j.base(req.Command), req: req.VerifyCom, replay: j.replay}, nil
	default:
		writeErrorResponse(j.conn, j.timeout, req.Command, protocol.ErrUnknownCommand)
		j.conn.Close()
		return nil, protocol.ErrUnknownCommand
	}
}

func (j *connJob) base(cmd protocol.Command) taskBase {
	b := taskBase{
		conn: j.conn, timeout: j.timeout, metrics: j.metrics, log: j.log,
		audit: j.audit, registry: j.registry, cmd: cmd, start: time.Now(),
	}
	if j.registry != nil {
		b.registryID = j.registry.Track(cmd.String(), remoteIP(j.conn))
	}
	return b
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}
	return addr.String()
}

// taskBase is embedded by every per-command ConsumerTask: it carries
// the connection, timeout, and observability handles every command
// response path needs, following the teacher's pattern of small
// embeddable structs (see btd/server.go's *Server embedding).
type taskBase struct {
	conn       net.Conn
	timeout    time.Duration
	metrics    *Metrics
	log        zerolog.Logger
	audit      *audit.Publisher
	registry   *Registry
	registryID string
	cmd        protocol.Command
	start      time.Time
	duplicate  bool // set by verifyComTask when replay.Guard flags a reused submission
}

func (b taskBase) finish(res *protocol.Response, err error) {
	defer b.conn.Close()
	if b.registry != nil {
		b.registry.Forget(b.registryID)
	}
	cmdName := b.cmd.String()
	elapsed := time.Since(b.start)
	b.metrics.CommandDuration.WithLabelValues(cmdName).Observe(elapsed.Seconds())

	if b.audit != nil {
		b.audit.Publish(audit.Event{
			Command: cmdName, Success: err == nil,
			DurationMs: elapsed.Milliseconds(), RemoteAddr: b.conn.RemoteAddr().String(),
			Duplicate: b.duplicate,
		})
	}

	if err != nil {
		b.metrics.CommandErrors.WithLabelValues(cmdName).Inc()
		b.log.Error().Err(err).Str("command", cmdName).Msg("command failed")
		writeErrorResponse(b.conn, b.timeout, b.cmd, err)
		return
	}
	b.metrics.CommandTotal.WithLabelValues(cmdName).Inc()
	raw, encErr := protocol.EncodeResponse(res)
	if encErr != nil {
		b.log.Error().Err(encErr).Msg("failed to encode response")
		return
	}
	if writeErr := protocol.WriteFrame(b.conn, raw, b.timeout); writeErr != nil {
		b.log.Warn().Err(writeErr).Msg("failed to write response")
	}
}

func writeErrorResponse(conn net.Conn, timeout time.Duration, cmd protocol.Command, err error) {
	res := &protocol.Response{Command: cmd}
	raw, encErr := protocol.EncodeResponse(res)
	if encErr != nil {
		return
	}
	_ = protocol.WriteFrame(conn, raw, timeout)
	_ = err // error detail is logged by the caller; the wire contract has no error payload (spec.md §4.6)
}

// --- KeyGen: always single-worker ---

type keyGenTask struct {
	base taskBase
	req  *protocol.KeyGenData
}

func (t *keyGenTask) TotalWorkers() int { return 1 }

func (t *keyGenTask) Consume(curr, total int) {
	var key *crypto.Key
	var err error
	if t.req.HasCurve {
		key, err = crypto.KeyGen(t.req.Curve)
	} else {
		key, err = crypto.KeyGenForBallot(t.req.Options, t.req.Ballots)
	}
	if err != nil {
		t.base.finish(nil, err)
		return
	}
	t.base.finish(&protocol.Response{Command: protocol.CmdKeyGen, Key: key}, nil)
}

// --- GenBallot: fans out across the pool per spec.md §4.4 ---

type genBallotTask struct {
	base  taskBase
	req   *protocol.GenBallotData
	total int

	mu        sync.Mutex
	ballots   []crypto.Ballot
	firstErr  error
	remaining int32
	shares    []int
}

func newGenBallotTask(base taskBase, req *protocol.GenBallotData, poolSize int) *genBallotTask {
	total := poolSize
	if total < 1 {
		total = 1
	}
	if req.Number < total {
		total = req.Number
	}
	if total < 1 {
		total = 1
	}
	shares := ceilShares(req.Number, total)
	return &genBallotTask{base: base, req: req, total: total, remaining: int32(total), shares: shares}
}

// ceilShares implements original_source/demos-crypto/src/ThreadPool.cpp's
// slicing rule: worker k (0-based) takes
// ceil(remaining/(total-k)) of whatever is left, so earlier workers
// absorb the remainder and every worker's share differs by at most one.
func ceilShares(n, total int) []int {
	shares := make([]int, total)
	remaining := n
	for k := 0; k < total; k++ {
		denom := total - k
		share := (remaining + denom - 1) / denom
		shares[k] = share
		remaining -= share
	}
	return shares
}

func (t *genBallotTask) TotalWorkers() int { return t.total }

func (t *genBallotTask) Consume(curr, total int) {
	n := t.shares[curr]
	var mine []crypto.Ballot
	var err error
	for i := 0; i < n && err == nil; i++ {
		var bd *crypto.BallotData
		if t.req.WithZK {
			bd, err = crypto.GenBallotZK(&t.req.Key, t.req.Options, t.req.Ballots, 1)
		} else {
			bd, err = crypto.GenBallotPlain(&t.req.Key, t.req.Options, t.req.Choice, t.req.Blank, 1)
		}
		if err == nil {
			mine = append(mine, bd.Ballots...)
		}
	}

	t.mu.Lock()
	if err != nil && t.firstErr == nil {
		t.firstErr = err
	}
	t.ballots = append(t.ballots, mine...)
	t.mu.Unlock()

	if atomic.AddInt32(&t.remaining, -1) == 0 {
		t.mu.Lock()
		ballots := t.ballots
		firstErr := t.firstErr
		t.mu.Unlock()
		if firstErr != nil {
			t.base.finish(nil, firstErr)
			return
		}
		t.base.finish(&protocol.Response{Command: protocol.CmdGenBallot, BallotData: &crypto.BallotData{Ballots: ballots}}, nil)
	}
}

// --- AddCom/AddDecom/CompleteZK/VerifyCom: single-worker combinators ---

type addComTask struct {
	base taskBase
	req  *protocol.AddComData
}

func (t *addComTask) TotalWorkers() int { return 1 }

func (t *addComTask) Consume(curr, total int) {
	com, err := crypto.AddCom(t.req.Coms)
	if err != nil {
		t.base.finish(nil, err)
		return
	}
	t.base.finish(&protocol.Response{Command: protocol.CmdAddCom, Com: com}, nil)
}

type addDecomTask struct {
	base taskBase
	req  *protocol.AddDecomData
}

func (t *addDecomTask) TotalWorkers() int { return 1 }

func (t *addDecomTask) Consume(curr, total int) {
	q := t.req.Key.Curve.Curve().Params().N
	decom, err := crypto.AddDecom(t.req.Decoms, q)
	if err != nil {
		t.base.finish(nil, err)
		return
	}
	t.base.finish(&protocol.Response{Command: protocol.CmdAddDecom, Decom: decom}, nil)
}

type completeZKTask struct {
	base taskBase
	req  *protocol.CompleteZKData
}

func (t *completeZKTask) TotalWorkers() int { return 1 }

func (t *completeZKTask) Consume(curr, total int) {
	zk2s := make([]crypto.ZK2, len(t.req.State))
	for i, st := range t.req.State {
		zk2s[i] = *crypto.CompleteZK(&t.req.Key, &st, t.req.Coins)
	}
	t.base.finish(&protocol.Response{Command: protocol.CmdCompleteZK, ZK2: zk2s}, nil)
}

type verifyComTask struct {
	base   taskBase
	req    *protocol.VerifyComData
	replay *replay.Guard // nil disables replay detection
}

func (t *verifyComTask) TotalWorkers() int { return 1 }

func (t *verifyComTask) Consume(curr, total int) {
	ok, err := crypto.VerifyCom(&t.req.Key, t.req.Com, t.req.Decom)
	if err != nil {
		t.base.finish(nil, err)
		return
	}
	if t.replay != nil {
		t.base.duplicate = t.replay.CheckAndRecord(comFingerprint(t.req.Com))
	}
	t.base.finish(&protocol.Response{Command: protocol.CmdVerifyCom, Check: ok}, nil)
}

// comFingerprint identifies a Com submission for replay.Guard by its
// marshaled curve points, the way the teacher's btd.DoubleSpendList
// fingerprints a redemption token by its raw bytes.
func comFingerprint(com crypto.Com) []byte {
	var buf []byte
	for _, cell := range com.Cells {
		buf = append(buf, cell.C1.Marshal()...)
		buf = append(buf, cell.C2.Marshal()...)
	}
	return buf
}
