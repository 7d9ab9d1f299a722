/*
Package finitediff is a pure Go library for the numerical differentiation of arbitrary functions.
It provides finite-difference methods of any derivative and accuracy order with an adaptive
choice of the step size, Richardson extrapolation, and Jacobians, Jacobian-vector products,
vector-Jacobian products and gradients of functions over nested numeric structures.

The library is organised in the following packages:
  - fdm: stencils, methods, step-size search, evaluation and extrapolation;
  - tovec: flattening of nested values into vectors of float64 and back;
  - grad: Jacobian, JVP, VJP and gradient of structured functions.
*/
package finitediff
