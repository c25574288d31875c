package network

import (
	"context"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/go-vehicle/pkg/physics"
	"github.com/opd-ai/go-vehicle/pkg/replication"
)

var (
	_ replication.Channel   = (*StateChannel)(nil)
	_ replication.SlipRelay = (*StateChannel)(nil)
	_ replication.PoseRelay = (*StateChannel)(nil)
)

func TestDecodeTriple(t *testing.T) {
	valid := EncodeTriple(mgl64.Vec3{0.5, -0.25, -1})

	nan := EncodeTriple(mgl64.Vec3{})
	copy(nan[4:], EncodeTriple(mgl64.Vec3{math.NaN()})[4:12])

	badMagic := append([]byte(nil), valid...)
	badMagic[0] = 'X'

	tests := []struct {
		name    string
		data    []byte
		want    mgl64.Vec3
		wantErr bool
	}{
		{"valid", valid, mgl64.Vec3{0.5, -0.25, -1}, false},
		{"short", valid[:10], mgl64.Vec3{}, true},
		{"long", append(append([]byte(nil), valid...), 0), mgl64.Vec3{}, true},
		{"bad magic", badMagic, mgl64.Vec3{}, true},
		{"not finite", nan, mgl64.Vec3{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeTriple(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedDatagram)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeSlip(t *testing.T) {
	valid := EncodeSlip(replication.Slip{Wheel: physics.RearRight, Slipping: true})

	badWheel := append([]byte(nil), valid...)
	badWheel[4] = 4
	badFlag := append([]byte(nil), valid...)
	badFlag[5] = 2

	tests := []struct {
		name    string
		data    []byte
		want    replication.Slip
		wantErr bool
	}{
		{"slipping", valid, replication.Slip{Wheel: physics.RearRight, Slipping: true}, false},
		{"grip", EncodeSlip(replication.Slip{Wheel: physics.FrontLeft}), replication.Slip{Wheel: physics.FrontLeft}, false},
		{"short", valid[:5], replication.Slip{}, true},
		{"triple magic", EncodeTriple(mgl64.Vec3{})[:SlipDatagramSize], replication.Slip{}, true},
		{"wheel out of range", badWheel, replication.Slip{}, true},
		{"flag out of range", badFlag, replication.Slip{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSlip(tt.data)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedDatagram)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodePose(t *testing.T) {
	pose := replication.Pose{Position: mgl64.Vec3{1.5, 0, -3}, Heading: 0.25}
	got, err := DecodePose(EncodePose(pose))
	require.NoError(t, err)
	assert.Equal(t, pose, got)

	inf := EncodePose(replication.Pose{Heading: math.Inf(1)})
	_, err = DecodePose(inf)
	assert.ErrorIs(t, err, ErrMalformedDatagram)

	_, err = DecodePose(EncodePose(pose)[:PoseDatagramSize-1])
	assert.ErrorIs(t, err, ErrMalformedDatagram)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTriple, KindOf(EncodeTriple(mgl64.Vec3{})))
	assert.Equal(t, KindSlip, KindOf(EncodeSlip(replication.Slip{})))
	assert.Equal(t, KindPose, KindOf(EncodePose(replication.Pose{})))
	assert.Equal(t, KindUnknown, KindOf([]byte("VS")))
	assert.Equal(t, KindUnknown, KindOf([]byte("garbage")))
	assert.Equal(t, "slip", KindSlip.String())
}

func TestStateChannel_RelaysSlipsAndPose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observer, err := Listen(ctx, "127.0.0.1:0", testNetworkConfig(), nil)
	require.NoError(t, err)
	defer observer.Close()

	owner, err := Dial(ctx, observer.LocalAddr().String(), testNetworkConfig(), nil)
	require.NoError(t, err)
	defer owner.Close()

	_, ok := observer.LatestPose()
	assert.False(t, ok, "no pose before the owner relays one")

	pose := replication.Pose{Position: mgl64.Vec3{2, 0, 7}, Heading: -0.4}
	owner.RelaySlip(replication.Slip{Wheel: physics.RearLeft, Slipping: true})
	owner.RelayPose(pose)

	require.Eventually(t, func() bool { return observer.Received() == 2 }, time.Second, 5*time.Millisecond)

	got, ok := observer.LatestPose()
	assert.True(t, ok)
	assert.Equal(t, pose, got)
	assert.Equal(t, []replication.Slip{{Wheel: physics.RearLeft, Slipping: true}}, observer.TakeSlips())
	assert.Empty(t, observer.TakeSlips(), "slips are taken once")
	assert.Zero(t, owner.Failed())

	observer.RelaySlip(replication.Slip{Wheel: physics.FrontLeft})
	assert.Empty(t, observer.TakeSlips(), "a listen-only channel does not loop its own relays back")
}

func TestStateChannel_ListenAndDial(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observer, err := Listen(ctx, "127.0.0.1:0", testNetworkConfig(), nil)
	require.NoError(t, err)
	defer observer.Close()

	owner, err := Dial(ctx, observer.LocalAddr().String(), testNetworkConfig(), nil)
	require.NoError(t, err)
	defer owner.Close()

	want := mgl64.Vec3{0.7, -0.3, 1}
	owner.Write(want)

	assert.Equal(t, want, owner.Read(), "owner reads back its own write")
	assert.Eventually(t, func() bool {
		return observer.Read() == want
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), observer.Received())
	assert.Zero(t, owner.Failed())
}

func TestStateChannel_DropsMalformed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observer, err := Listen(ctx, "127.0.0.1:0", testNetworkConfig(), nil)
	require.NoError(t, err)
	defer observer.Close()

	conn, err := net.Dial("udp", observer.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	last := mgl64.Vec3{1, 0.5, 1}
	_, err = conn.Write(EncodeTriple(last))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return observer.Received() == 1 }, time.Second, 5*time.Millisecond)

	_, err = conn.Write([]byte("garbage"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return observer.Dropped() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, last, observer.Read(), "a malformed datagram leaves the last triple in place")
}

func TestStateChannel_PublishAfterClose(t *testing.T) {
	ctx := context.Background()
	observer, err := Listen(ctx, "127.0.0.1:0", testNetworkConfig(), nil)
	require.NoError(t, err)
	defer observer.Close()

	owner, err := Dial(ctx, observer.LocalAddr().String(), testNetworkConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, owner.Close())

	err = owner.Publish(ctx, mgl64.Vec3{1, 0, 1})
	assert.True(t, errors.Is(err, ErrChannelClosed), "Publish() error = %v, want ErrChannelClosed", err)

	owner.Write(mgl64.Vec3{0.2, 0, 1})
	assert.Equal(t, uint64(1), owner.Failed())
	assert.NoError(t, owner.Close(), "Close is idempotent")
}

func TestStateChannel_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	observer, err := Listen(ctx, "127.0.0.1:0", testNetworkConfig(), nil)
	require.NoError(t, err)

	cancel()

	done := make(chan struct{})
	go func() {
		observer.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return after the context was cancelled")
	}
}

func TestListen_BadAddress(t *testing.T) {
	_, err := Listen(context.Background(), "256.0.0.1:99999", testNetworkConfig(), nil)
	assert.Error(t, err)
}

func TestStateChannel_RateLimitsSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := testNetworkConfig()
	cfg.MaxDatagramsPerSecond = 2
	observer, err := Listen(ctx, "127.0.0.1:0", cfg, nil)
	require.NoError(t, err)
	defer observer.Close()

	conn, err := net.Dial("udp", observer.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 5; i++ {
		_, err := conn.Write(EncodeTriple(mgl64.Vec3{float64(i) / 10, 0, 1}))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		return observer.Received()+observer.Limited() == 5
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(2), observer.Received())
	assert.Equal(t, uint64(3), observer.Limited())
	assert.Zero(t, observer.Dropped())
}
