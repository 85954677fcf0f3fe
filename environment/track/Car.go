// Package track provides a top-down driving simulator in which a car
// races laps around an oval track. The track is bounded by an inner
// and an outer wall, and a ring of checkpoint gates (triggers) spans
// the road between them.
//
// The car observes the world through a fan of distance sensors (rays)
// spread evenly around its body, its own local velocity and angular
// velocity, and the local direction to the next gate. Observations are
// vectors of Rays + 9 features in the following order:
//
//	1. Rays distance readings, each the fraction of RayLength at which
//	   the ray first hits a wall. Bounds: [0, 1]
//	2. The local velocity of the car divided by SpeedScale (x, y, 0)
//	3. The angular velocity of the car divided by AngularSpeedScale
//	   (0, 0, ω)
//	4. The unit direction from the car to the centre of the next gate
//	   in the car's frame (x, y, 0)
//
// Actions are discrete and enumerate the product of the forward input
// {-1, 0, 1} and the steering input {-1, 0, 1}: action a applies a
// forward input of a/3 - 1 and a steering input of a%3 - 1, where a
// positive steering input turns to the right.
//
// Crossing the next gate forward gives a reward of +1 and refills the
// time counter. Crossing the last passed gate backwards gives a reward
// of -1 and counts against the back-trigger limit. Touching a wall is
// recorded until the car respawns.
//
// Car implements environment.Host, and Env wraps a Car to implement
// environment.Environment.
package track

import (
	"fmt"
	"math"

	"github.com/ByteArena/box2d"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NoOp is the action that neither accelerates nor steers
const NoOp = 4

// Car is a simulated car on an oval track
type Car struct {
	Config

	world    box2d.B2World
	walls    []*box2d.B2Body
	gates    *box2d.B2Body
	body     *box2d.B2Body
	inner    [][2]float64
	outer    [][2]float64
	midpoint [][2]float64

	forward, right float64
	action         int

	lastTrigger        int
	reward             float64
	timeCounter        float64
	backTriggerCounter int
	hasContact         bool

	rays  []float64
	frame int

	spawn      [2]float64
	spawnAngle float64
	jitter     distuv.Uniform
}

// NewCar returns a new car at the start of the track
func NewCar(c Config, seed uint64) (*Car, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("newCar: %v", err)
	}

	car := &Car{
		Config: c,
		rays:   make([]float64, c.Rays),
		jitter: distuv.Uniform{
			Min: -c.SpawnJitter,
			Max: c.SpawnJitter,
			Src: rand.NewSource(seed),
		},
	}
	car.world = box2d.MakeB2World(box2d.MakeB2Vec2(0.0, 0.0))
	car.buildTrack()
	car.buildCar()
	car.world.SetContactListener(newContactDetector(car))

	car.Reset()
	return car, nil
}

// gateAngle returns the ellipse parameter at which gate i is placed
func (c *Car) gateAngle(i float64) float64 {
	return 2 * math.Pi * i / float64(c.Triggers)
}

func ellipsePoint(a, b, theta float64) [2]float64 {
	return [2]float64{a * math.Cos(theta), b * math.Sin(theta)}
}

// buildTrack creates the static walls and the sensor gates
func (c *Car) buildTrack() {
	c.inner = make([][2]float64, c.Triggers)
	c.outer = make([][2]float64, c.Triggers)
	c.midpoint = make([][2]float64, c.Triggers)
	for i := 0; i < c.Triggers; i++ {
		theta := c.gateAngle(float64(i))
		c.inner[i] = ellipsePoint(c.InnerA, c.InnerB, theta)
		c.outer[i] = ellipsePoint(c.OuterA, c.OuterB, theta)
		c.midpoint[i] = [2]float64{
			(c.inner[i][0] + c.outer[i][0]) / 2.0,
			(c.inner[i][1] + c.outer[i][1]) / 2.0,
		}
	}

	// Walls
	c.walls = make([]*box2d.B2Body, 0, 2)
	for _, wall := range [][][2]float64{c.inner, c.outer} {
		wallDef := box2d.NewB2BodyDef()
		wallDef.Type = 0 // Static body
		body := c.world.CreateBody(wallDef)

		for i := range wall {
			p1 := wall[i]
			p2 := wall[(i+1)%len(wall)]

			edge := box2d.NewB2EdgeShape()
			edge.Set(box2d.MakeB2Vec2(p1[0], p1[1]),
				box2d.MakeB2Vec2(p2[0], p2[1]))

			edgeFixture := box2d.MakeB2FixtureDef()
			edgeFixture.Shape = edge
			edgeFixture.Friction = 0.3
			body.CreateFixtureFromDef(&edgeFixture)
		}
		c.walls = append(c.walls, body)
	}

	// Gates
	gateDef := box2d.NewB2BodyDef()
	gateDef.Type = 0 // Static body
	c.gates = c.world.CreateBody(gateDef)
	for i := 0; i < c.Triggers; i++ {
		edge := box2d.NewB2EdgeShape()
		edge.Set(box2d.MakeB2Vec2(c.inner[i][0], c.inner[i][1]),
			box2d.MakeB2Vec2(c.outer[i][0], c.outer[i][1]))

		gateFixture := box2d.MakeB2FixtureDef()
		gateFixture.Shape = edge
		gateFixture.IsSensor = true
		gateFixture.UserData = i
		c.gates.CreateFixtureFromDef(&gateFixture)
	}

	// The car spawns halfway between the first two gates, facing along
	// the track
	theta := c.gateAngle(0.5)
	in := ellipsePoint(c.InnerA, c.InnerB, theta)
	out := ellipsePoint(c.OuterA, c.OuterB, theta)
	c.spawn = [2]float64{(in[0] + out[0]) / 2.0, (in[1] + out[1]) / 2.0}

	a := (c.InnerA + c.OuterA) / 2.0
	b := (c.InnerB + c.OuterB) / 2.0
	tangent := [2]float64{-a * math.Sin(theta), b * math.Cos(theta)}
	c.spawnAngle = math.Atan2(-tangent[0], tangent[1])
}

// buildCar creates the car's dynamic body
func (c *Car) buildCar() {
	carDef := box2d.MakeB2BodyDef()
	carDef.Type = 2 // Dynamic body
	carDef.Position = box2d.MakeB2Vec2(c.spawn[0], c.spawn[1])
	carDef.Angle = c.spawnAngle
	carDef.LinearDamping = LinearDamping
	carDef.AngularDamping = AngularDamping
	carDef.AllowSleep = false
	c.body = c.world.CreateBody(&carDef)

	carShape := box2d.NewB2PolygonShape()
	carShape.SetAsBox(CarHalfWidth, CarHalfLength)

	carFix := box2d.MakeB2FixtureDef()
	carFix.Shape = carShape
	carFix.Density = CarDensity
	carFix.Friction = 0.3
	carFix.Restitution = 0.1
	c.body.CreateFixtureFromDef(&carFix)
}

// Reset respawns the car at the start of the track and clears all
// counters
func (c *Car) Reset() {
	angle := c.spawnAngle + c.jitter.Rand()
	c.body.SetTransform(box2d.MakeB2Vec2(c.spawn[0], c.spawn[1]), angle)
	c.body.SetLinearVelocity(box2d.MakeB2Vec2(0.0, 0.0))
	c.body.SetAngularVelocity(0.0)

	c.SetBotAction(NoOp)
	c.lastTrigger = 0
	c.reward = 0.0
	c.timeCounter = c.TimeLimit
	c.backTriggerCounter = 0
	c.hasContact = false
	c.frame = 0

	c.sense()
}

// SetBotAction sets the action the car takes on each following frame
// until a new action is set
func (c *Car) SetBotAction(action int) {
	if action < 0 || action >= c.Actions() {
		panic(fmt.Sprintf("setBotAction: illegal action selection, "+
			"expected action ϵ [0, %v), received action = %v", c.Actions(),
			action))
	}
	c.action = action
	c.forward = float64(action/3 - 1)
	c.right = float64(action%3 - 1)
}

// Action returns the action currently applied
func (c *Car) Action() int {
	return c.action
}

// Tick advances the simulation by a single frame
func (c *Car) Tick() {
	dt := 1.0 / c.FPS

	// Remove sideways slip so the car rolls along its heading
	lateralNormal := c.body.GetWorldVector(box2d.MakeB2Vec2(1.0, 0.0))
	lateralSpeed := box2d.B2Vec2Dot(lateralNormal, c.body.GetLinearVelocity())
	impulse := box2d.MakeB2Vec2(
		-c.body.GetMass()*lateralSpeed*lateralNormal.X,
		-c.body.GetMass()*lateralSpeed*lateralNormal.Y,
	)
	c.body.ApplyLinearImpulse(impulse, c.body.GetWorldCenter(), true)

	// Engine
	if c.forward != 0.0 {
		force := c.body.GetWorldVector(
			box2d.MakeB2Vec2(0.0, c.forward*EngineForce),
		)
		c.body.ApplyForceToCenter(force, true)
	}

	// Steering only has grip while the car rolls
	if c.right != 0.0 {
		speed := c.forwardSpeed()
		grip := math.Min(math.Abs(speed)/5.0, 1.0)
		if speed < 0 {
			grip = -grip
		}
		c.body.ApplyTorque(-c.right*TurnTorque*grip, true)
	}

	c.world.Step(dt, VelocityIterations, PositionIterations)

	c.timeCounter -= dt
	c.frame++
	c.sense()
}

// Frame returns the number of frames simulated since the last respawn
func (c *Car) Frame() int {
	return c.frame
}

// forwardSpeed returns the speed of the car along its heading
func (c *Car) forwardSpeed() float64 {
	heading := c.body.GetWorldVector(box2d.MakeB2Vec2(0.0, 1.0))
	return box2d.B2Vec2Dot(heading, c.body.GetLinearVelocity())
}

// Position returns the position and heading of the car in world
// coordinates
func (c *Car) Position() (x, y, angle float64) {
	pos := c.body.GetPosition()
	return pos.X, pos.Y, c.body.GetAngle()
}

// sense casts the distance sensors around the car
func (c *Car) sense() {
	origin := c.body.GetPosition()
	for i := range c.rays {
		theta := 2 * math.Pi * float64(i) / float64(len(c.rays))
		end := c.body.GetWorldPoint(box2d.MakeB2Vec2(
			c.RayLength*math.Cos(theta),
			c.RayLength*math.Sin(theta),
		))

		closest := 1.0
		callback := func(fixture *box2d.B2Fixture, point, normal box2d.B2Vec2,
			fraction float64) float64 {
			if fixture.IsSensor() || fixture.GetBody() == c.body {
				return -1.0
			}
			if fraction < closest {
				closest = fraction
			}
			return fraction
		}
		c.world.RayCast(callback, origin, end)
		c.rays[i] = closest
	}
}

// Rays returns the latest distance sensor readings
func (c *Car) Rays() []float64 {
	rays := make([]float64, len(c.rays))
	copy(rays, c.rays)
	return rays
}

// Speed returns the local velocity of the car
func (c *Car) Speed() [3]float64 {
	v := c.body.GetLocalVector(c.body.GetLinearVelocity())
	return [3]float64{v.X, v.Y, 0.0}
}

// AngularSpeed returns the angular velocity of the car
func (c *Car) AngularSpeed() [3]float64 {
	return [3]float64{0.0, 0.0, c.body.GetAngularVelocity()}
}

// NextTrigger returns the index of the next gate to cross
func (c *Car) NextTrigger() int {
	return (c.lastTrigger + 1) % c.Triggers
}

// LastTrigger returns the index of the last gate crossed
func (c *Car) LastTrigger() int {
	return c.lastTrigger
}

// nextTriggerDirection returns the unit direction to the centre of the
// next gate in the car's frame
func (c *Car) nextTriggerDirection() [3]float64 {
	mid := c.midpoint[c.NextTrigger()]
	local := c.body.GetLocalPoint(box2d.MakeB2Vec2(mid[0], mid[1]))
	norm := math.Hypot(local.X, local.Y)
	if norm == 0 {
		return [3]float64{}
	}
	return [3]float64{local.X / norm, local.Y / norm, 0.0}
}

// Observation returns the car's current observation vector
func (c *Car) Observation() []float64 {
	obs := make([]float64, 0, c.Features())
	obs = append(obs, c.rays...)

	speed := c.Speed()
	for _, v := range speed {
		obs = append(obs, v/SpeedScale)
	}

	angular := c.AngularSpeed()
	for _, w := range angular {
		obs = append(obs, w/AngularSpeedScale)
	}

	direction := c.nextTriggerDirection()
	obs = append(obs, direction[:]...)

	return obs
}

// Reward returns the reward accumulated since the last call and clears
// it
func (c *Car) Reward() float64 {
	r := c.reward
	c.reward = 0.0
	return r
}

// CheckTimeCounter returns whether the car ran out of time to reach
// the next gate
func (c *Car) CheckTimeCounter() bool {
	return c.timeCounter <= 0.0
}

// CheckBackTriggerCounter returns whether the car crossed too many
// gates backwards
func (c *Car) CheckBackTriggerCounter() bool {
	return c.backTriggerCounter >= c.BackTriggerLimit
}

// CheckHasContact returns whether the car touched a wall since it last
// respawned
func (c *Car) CheckHasContact() bool {
	return c.hasContact
}

// onTrigger handles the car entering gate n
func (c *Car) onTrigger(n int) {
	if n == c.NextTrigger() {
		c.reward += 1.0
		c.lastTrigger = n
		c.timeCounter = c.TimeLimit
	} else if n == c.lastTrigger {
		c.reward -= 1.0
		c.backTriggerCounter++
		c.lastTrigger = (n - 1 + c.Triggers) % c.Triggers
	}
}

// onContact handles the car touching a wall
func (c *Car) onContact() {
	c.hasContact = true
}

func (c *Car) isWall(b *box2d.B2Body) bool {
	for _, wall := range c.walls {
		if wall == b {
			return true
		}
	}
	return false
}
