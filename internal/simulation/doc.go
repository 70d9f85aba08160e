// Package simulation models the bottle-filling line: a conveyor carrying
// bottles past a contact sensor and a nozzle that drops liquid into them.
//
// The model is kinematic, not a physics engine. Bottles are rigid three-wall
// outlines that only move along the conveyor; liquid units are points that
// fall under constant gravity and come to rest on a bottle floor or on the
// conveyor belt.
//
// World.Step advances the model by one fixed tick (1/60 s) from a set of
// actuator Inputs and reports an Observation. It never touches registers;
// ReadInputs bridges the plant devices to Inputs. The raw contact observation
// is fed to the fill-cycle state machine, which alone writes CONTACT.
//
// # Coordinates
//
// World coordinates have y growing upwards. The contact sensor is specified
// in screen coordinates (y' = 600 - y), so the proximity test maps the
// bottle's left wall to screen space before comparing.
package simulation
