package shallow

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

const ExampleChannelFile = `[Channel]

#######################
# Required Parameters #
#######################

# Mesh file: one "x depth" row per node, in channel order. Required for
# parent domains; children derive their mesh from the parent span.
MeshFile = mesh.dat

# Number of timesteps and the timestep length in seconds.
Timesteps = 100
Dt = 10.0

#######################
# Optional Parameters #
#######################

# Tidal forcing at the open boundary (parent domains only).
# TideAmplitude = 0.5
# TidePeriod = 44712.0

# Linear bottom friction coefficient.
# Friction = 0.0001

# Gravitational acceleration.
# Gravity = 9.81

# Write the elevation field every OutputInterval timesteps.
# OutputInterval = 10

# Node id recorded as a hydrograph station.
# Station = 0

# Generate a hydrograph figure during post-processing.
# Plot = false

# Child domains only: the parent node positions spanned by this domain.
# The span must lie strictly inside the parent channel.
# SpanStart = 10
# SpanEnd = 20`

// ChannelConfig mirrors the [Channel] section of a domain's control
// file.
type ChannelConfig struct {
	MeshFile  string
	Timesteps int
	Dt        float64

	TideAmplitude float64
	TidePeriod    float64
	Friction      float64
	Gravity       float64

	OutputInterval int
	Station        int
	Plot           bool

	SpanStart int
	SpanEnd   int
}

type channelWrapper struct {
	Channel ChannelConfig
}

func defaultChannel() ChannelConfig {
	return ChannelConfig{
		TidePeriod:     44712.0,
		Gravity:        9.81,
		OutputInterval: 1,
		SpanStart:      -1,
		SpanEnd:        -1,
	}
}

// ReadChannelConfig parses the control file at fname.
func ReadChannelConfig(fname string) (ChannelConfig, error) {
	wrap := channelWrapper{Channel: defaultChannel()}
	if err := gcfg.ReadFileInto(&wrap, fname); err != nil {
		return ChannelConfig{}, err
	}
	con := wrap.Channel

	if con.Timesteps < 1 {
		return ChannelConfig{}, fmt.Errorf("channel config %s: Timesteps is required", fname)
	}
	if con.Dt <= 0 {
		return ChannelConfig{}, fmt.Errorf("channel config %s: Dt must be positive", fname)
	}
	if con.OutputInterval == 0 {
		con.OutputInterval = 1
	}
	return con, nil
}

// IsChildSpan reports whether the config declares a parent sub-reach,
// which makes the domain a child refinement.
func (con *ChannelConfig) IsChildSpan() bool {
	return con.SpanStart >= 0 && con.SpanEnd > con.SpanStart
}
